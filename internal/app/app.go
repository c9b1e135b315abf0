package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/lithiumhub/lithium/backend/internal/auth"
	"github.com/lithiumhub/lithium/backend/internal/catalog"
	"github.com/lithiumhub/lithium/backend/internal/crypto"
	"github.com/lithiumhub/lithium/backend/internal/handler"
	"github.com/lithiumhub/lithium/backend/internal/mirror"
	"github.com/lithiumhub/lithium/backend/internal/remote"
	remotegithub "github.com/lithiumhub/lithium/backend/internal/remote/github"
	remotememory "github.com/lithiumhub/lithium/backend/internal/remote/memory"
	"github.com/lithiumhub/lithium/backend/internal/secret"
	"github.com/lithiumhub/lithium/backend/internal/session"
)

// App holds the dependencies for the Lambda function. Everything is wired
// once at cold start; no package-level mutable state.
type App struct {
	authHandler      *handler.AuthHandler
	catalogHandler   *handler.CatalogHandler
	syncHandler      *handler.SyncHandler
	apiGatewaySecret string
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewApp initializes the application dependencies.
func NewApp(ctx context.Context) *App {
	devMode := os.Getenv("DEV_MODE") == "true"

	// DynamoDB stays nil in dev mode; every store falls back to memory.
	var dynamoClient *dynamodb.Client
	var resolver secret.Resolver
	var encryptor crypto.Encryptor

	if devMode {
		resolver = secret.NewEnvResolver()
		encryptor = crypto.NewMockEncryptor()
		fmt.Println("Using in-memory stores, EnvResolver and MockEncryptor (DEV_MODE=true)")
	} else {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			panic(fmt.Sprintf("unable to load SDK config, %v", err))
		}
		dynamoClient = dynamodb.NewFromConfig(cfg)
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(cfg))
		encryptor = crypto.NewKMSService(kms.NewFromConfig(cfg), envOr("KMS_KEY_ID", "alias/lithium-session-key"))
	}

	discordClientSecret, err := resolver.GetSecret(ctx, envOr("DISCORD_CLIENT_SECRET_PARAM", "/lithium/discord-client-secret"))
	if err != nil {
		log.Printf("WARNING: failed to resolve DISCORD_CLIENT_SECRET: %v", err)
	}

	jwtSecret, err := resolver.GetSecret(ctx, envOr("JWT_SECRET_PARAM", "/lithium/jwt-secret"))
	if err != nil {
		log.Printf("WARNING: failed to resolve JWT_SECRET: %v", err)
		jwtSecret = "default-dev-secret"
	}

	apiGatewaySecret, err := resolver.GetSecret(ctx, envOr("API_GATEWAY_SECRET_PARAM", "/lithium/api-gateway-secret"))
	if err != nil {
		log.Printf("WARNING: failed to resolve API_GATEWAY_SECRET: %v", err)
	}

	frontendURL := envOr("FRONTEND_URL", "http://localhost:3000")
	redirectURL := os.Getenv("DISCORD_REDIRECT_URL")
	if redirectURL == "" {
		if devMode {
			redirectURL = "http://localhost:8080/auth/callback"
		} else {
			redirectURL = frontendURL + "/api/auth/callback"
		}
	}

	provider := auth.NewProvider(
		os.Getenv("DISCORD_CLIENT_ID"),
		discordClientSecret,
		redirectURL,
		envOr("DISCORD_API_BASE", auth.DefaultAPIBase),
	)

	users := auth.NewUserStore(dynamoClient, envOr("USERS_TABLE", "Users"))
	sessions := session.NewManager(dynamoClient, envOr("SESSIONS_TABLE", "Sessions"), encryptor, provider, jwtSecret)
	store := catalog.NewStore(dynamoClient, envOr("DOWNLOADS_TABLE", "Downloads"))

	// Remote mirror target.
	var blob remote.BlobStore
	if devMode {
		blob = remotememory.NewStore()
		fmt.Println("Using in-memory mirror target (DEV_MODE=true)")
	} else {
		githubToken, err := resolver.GetSecret(ctx, envOr("GITHUB_TOKEN_PARAM", "/lithium/github-token"))
		if err != nil {
			log.Printf("WARNING: failed to resolve GITHUB_TOKEN: %v", err)
		}
		blob = remotegithub.New(
			githubToken,
			os.Getenv("GITHUB_OWNER"),
			os.Getenv("GITHUB_REPO"),
			envOr("GITHUB_BRANCH", "main"),
		)
	}
	syncer := mirror.NewSyncer(store, blob, envOr("GITHUB_FILE_PATH", "downloads.json"))

	return &App{
		authHandler:      handler.NewAuthHandler(provider, users, sessions, frontendURL),
		catalogHandler:   handler.NewCatalogHandler(store, sessions),
		syncHandler:      handler.NewSyncHandler(syncer, sessions, os.Getenv("MIRROR_SCOPE") == "all"),
		apiGatewaySecret: apiGatewaySecret,
	}
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := req.Path
	method := req.HTTPMethod

	fmt.Printf("Request: %s %s\n", method, path)

	// CORS Preflight
	if method == "OPTIONS" {
		return corsResponse(events.APIGatewayProxyResponse{StatusCode: 204}), nil
	}

	// Security: verify the request came through CloudFront.
	if os.Getenv("DEV_MODE") != "true" {
		if req.Headers["X-Origin-Verify"] != app.apiGatewaySecret && req.Headers["x-origin-verify"] != app.apiGatewaySecret {
			fmt.Printf("Security Block: Missing or invalid X-Origin-Verify header\n")
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusForbidden,
				Body:       "Forbidden: Access denied",
			}, nil
		}
	}

	// Strip /api prefix if present (for CloudFront proxying)
	if strings.HasPrefix(path, "/api") {
		path = strings.TrimPrefix(path, "/api")
	}

	switch {
	case path == "/auth/login" && method == "GET":
		return corsResponse(must(app.authHandler.Login(ctx, req))), nil
	case path == "/auth/callback" && method == "GET":
		return corsResponse(must(app.authHandler.Callback(ctx, req))), nil
	case path == "/auth/logout" && method == "POST":
		return corsResponse(must(app.authHandler.Logout(ctx, req))), nil
	case path == "/auth/user" && method == "GET":
		return corsResponse(must(app.authHandler.User(ctx, req))), nil

	case path == "/catalog" && method == "GET":
		return corsResponse(must(app.catalogHandler.List(ctx, req))), nil
	case path == "/catalog" && method == "POST":
		return corsResponse(must(app.catalogHandler.Create(ctx, req))), nil
	case path == "/catalog/remove" && method == "POST":
		return corsResponse(must(app.catalogHandler.Remove(ctx, req))), nil
	case path == "/catalog/clear" && method == "POST":
		return corsResponse(must(app.catalogHandler.Clear(ctx, req))), nil
	case path == "/catalog/sync" && method == "POST":
		return corsResponse(must(app.syncHandler.Trigger(ctx, req))), nil
	}

	return corsResponse(events.APIGatewayProxyResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("Not Found: %s %s", method, path),
	}), nil
}

// corsResponse adds CORS headers to an API Gateway response.
func corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = os.Getenv("FRONTEND_URL")
	if resp.Headers["Access-Control-Allow-Origin"] == "" {
		resp.Headers["Access-Control-Allow-Origin"] = "http://localhost:3000"
	}
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization"
	return resp
}

// must unwraps a handler response, converting an error into a 500.
func must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		fmt.Printf("Handler error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}

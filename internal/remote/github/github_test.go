package github

import (
	"errors"
	"net/http"
	"testing"

	gh "github.com/google/go-github/v68/github"
)

func ghError(status, message string) *gh.ErrorResponse {
	code := http.StatusInternalServerError
	switch status {
	case "409":
		code = http.StatusConflict
	case "422":
		code = http.StatusUnprocessableEntity
	case "401":
		code = http.StatusUnauthorized
	}
	return &gh.ErrorResponse{
		Response: &http.Response{StatusCode: code},
		Message:  message,
	}
}

func TestIsRevisionConflict(t *testing.T) {
	cases := []struct {
		name string
		resp *gh.Response
		err  error
		want bool
	}{
		{
			name: "409 response",
			resp: &gh.Response{Response: &http.Response{StatusCode: http.StatusConflict}},
			want: true,
		},
		{
			name: "422 response",
			resp: &gh.Response{Response: &http.Response{StatusCode: http.StatusUnprocessableEntity}},
			want: true,
		},
		{
			name: "401 response",
			resp: &gh.Response{Response: &http.Response{StatusCode: http.StatusUnauthorized}},
			want: false,
		},
		{
			name: "409 in wrapped error only",
			err:  ghError("409", "sha mismatch"),
			want: true,
		},
		{
			name: "plain network error",
			err:  errors.New("connection reset"),
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isRevisionConflict(tc.resp, tc.err); got != tc.want {
				t.Errorf("Expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestAPIDetail(t *testing.T) {
	if got := apiDetail(ghError("401", "Bad credentials")); got != "Bad credentials" {
		t.Errorf("Expected API message, got %q", got)
	}
	if got := apiDetail(errors.New("connection reset")); got != "" {
		t.Errorf("Expected empty detail for plain error, got %q", got)
	}
}

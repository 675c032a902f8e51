package gitrepo

import (
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// tokenAuth builds a basic-auth credential from a personal access token,
// the scheme GitHub and GitLab both accept for HTTPS clone URLs.
func tokenAuth(token string) transport.AuthMethod {
	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: token,
	}
}

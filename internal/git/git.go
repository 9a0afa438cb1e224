// Package git keeps a working copy of the content repository used in serve
// mode.
package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// tokenEnv carries the HTTPS token to the credential helper
const tokenEnv = "PORTALSYNC_GIT_TOKEN"

// Repo describes the checkout to maintain
type Repo struct {
	URL string
	Ref string
	Dir string
}

// Revision is the state of a checkout after an update
type Revision struct {
	Commit string
	Dir    string
}

// Checkouter brings a working copy up to date with its remote ref
type Checkouter interface {
	Checkout(ctx context.Context, repo Repo) (Revision, error)
}

// Auth holds credential file paths for private repositories
type Auth struct {
	SSHKeyFile     string
	HTTPSTokenFile string
}

// ShellClient implements Checkouter by running the git binary
type ShellClient struct {
	auth Auth
}

// NewShellClient returns a client using the given credentials
func NewShellClient(auth Auth) *ShellClient {
	return &ShellClient{auth: auth}
}

// Checkout clones repo.URL into repo.Dir on first use, fetches otherwise,
// and moves the working tree to repo.Ref.
func (c *ShellClient) Checkout(ctx context.Context, repo Repo) (Revision, error) {
	fresh := true
	if _, err := os.Stat(filepath.Join(repo.Dir, ".git")); err == nil {
		fresh = false
	}

	if fresh {
		if err := os.MkdirAll(filepath.Dir(repo.Dir), 0755); err != nil {
			return Revision{}, fmt.Errorf("failed to create parent directory: %w", err)
		}
		if err := c.remote(ctx, repo.URL, "clone", "--no-checkout", repo.URL, repo.Dir); err != nil {
			return Revision{}, fmt.Errorf("git clone failed: %w", err)
		}
	} else {
		if err := c.remote(ctx, repo.URL, "-C", repo.Dir, "fetch", "--tags", "origin"); err != nil {
			return Revision{}, fmt.Errorf("git fetch failed: %w", err)
		}
	}

	// Local names first (tags, hashes), then the remote branch
	ref := shortRef(repo.Ref)
	if err := run(exec.CommandContext(ctx, "git", "-C", repo.Dir, "checkout", "-f", ref)); err != nil {
		if err := run(exec.CommandContext(ctx, "git", "-C", repo.Dir, "checkout", "-f", "origin/"+ref)); err != nil {
			return Revision{}, fmt.Errorf("git checkout failed for ref %q: %w", repo.Ref, err)
		}
	}

	// A local branch lags behind after fetch; fails harmlessly for tags
	if !fresh {
		_ = run(exec.CommandContext(ctx, "git", "-C", repo.Dir, "reset", "--hard", "origin/"+ref))
	}

	out, err := exec.CommandContext(ctx, "git", "-C", repo.Dir, "rev-parse", "HEAD").Output()
	if err != nil {
		return Revision{}, fmt.Errorf("git rev-parse failed: %w", err)
	}

	return Revision{Commit: strings.TrimSpace(string(out)), Dir: repo.Dir}, nil
}

// shortRef trims the refs/heads/ and refs/tags/ prefixes webhooks report.
func shortRef(ref string) string {
	for _, prefix := range []string{"refs/heads/", "refs/tags/"} {
		if strings.HasPrefix(ref, prefix) {
			return strings.TrimPrefix(ref, prefix)
		}
	}
	return ref
}

// remote runs a git command that talks to url, with credentials attached.
func (c *ShellClient) remote(ctx context.Context, url string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	if err := c.configureAuth(cmd, url); err != nil {
		return err
	}
	return run(cmd)
}

func (c *ShellClient) configureAuth(cmd *exec.Cmd, url string) error {
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, "GIT_TERMINAL_PROMPT=0")

	if c.auth.SSHKeyFile != "" && (strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://")) {
		sshCmd := fmt.Sprintf("ssh -i %s -o StrictHostKeyChecking=accept-new -F /dev/null", shellQuote(c.auth.SSHKeyFile))
		cmd.Env = append(cmd.Env, "GIT_SSH_COMMAND="+sshCmd)
		return nil
	}

	if c.auth.HTTPSTokenFile != "" && strings.HasPrefix(url, "https://") {
		token, err := os.ReadFile(c.auth.HTTPSTokenFile)
		if err != nil {
			return fmt.Errorf("failed to read HTTPS token file: %w", err)
		}

		// The helper reads the token from the environment, never from argv
		cmd.Env = append(cmd.Env, tokenEnv+"="+strings.TrimSpace(string(token)))
		cmd.Args = insertGitFlags(cmd.Args,
			"-c", `credential.helper=!f() { echo "username=x-access-token"; echo "password=$`+tokenEnv+`"; }; f`,
		)
	}
	return nil
}

// insertGitFlags puts flags between "git" and the rest of args.
func insertGitFlags(args []string, flags ...string) []string {
	if len(args) == 0 {
		return flags
	}
	out := make([]string, 0, len(args)+len(flags))
	out = append(out, args[0])
	out = append(out, flags...)
	return append(out, args[1:]...)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func run(cmd *exec.Cmd) error {
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

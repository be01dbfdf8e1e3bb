package bookstore_test

import (
	"os"
	"strings"
	"testing"
)

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("%s should exist: %v", name, err)
	}
	return string(data)
}

func TestDockerfile(t *testing.T) {
	content := readFile(t, "Dockerfile")

	// マルチステージビルドで、最終ステージは軽量イメージであること
	if !strings.Contains(content, "FROM golang:") {
		t.Error("Dockerfile should contain a Go builder stage (FROM golang:)")
	}
	var lastFrom string
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, "FROM ") {
			lastFrom = trimmed
		}
	}
	if !strings.Contains(lastFrom, "gcr.io/distroless") && !strings.Contains(lastFrom, "alpine") {
		t.Errorf("final stage should use a minimal base image, got: %s", lastFrom)
	}

	for _, want := range []string{
		"./cmd/bookstore",
		"-o /out/bookstore",
		"ENTRYPOINT",
		// distrolessにはcurlがないためサブコマンドでヘルスチェックする
		`"healthcheck"`,
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Dockerfile should contain %q", want)
		}
	}
}

func TestDockerCompose(t *testing.T) {
	content := readFile(t, "docker-compose.yml")

	tests := []struct {
		name string
		want string
	}{
		{"api service", "api:"},
		{"worker service", "worker:"},
		{"migrate service", "migrate:"},
		{"db service", "db:"},
		{"redis service", "redis:"},
		{"postgres image", "image: postgres:"},
		{"worker subcommand", `command: ["worker"]`},
		{"migrate subcommand", `command: ["migrate"]`},
		{"migrations before serving", "service_completed_successfully"},
		// DB・Redisは外部に出ない内部ネットワークに閉じる
		{"internal network", "internal: true"},
		// APIのみGoogleへのトークン交換のため外部通信を許可する
		{"external network", "external:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(content, tt.want) {
				t.Errorf("docker-compose.yml should contain %q", tt.want)
			}
		})
	}
}

func TestEnvExampleListsRequiredVars(t *testing.T) {
	content := readFile(t, ".env.example")

	for _, key := range []string{
		"DATABASE_URL=",
		"GOOGLE_CLIENT_ID=",
		"GOOGLE_CLIENT_SECRET=",
		"GOOGLE_REDIRECT_URL=",
		"BASE_URL=",
	} {
		if !strings.Contains(content, key) {
			t.Errorf(".env.example should list %s", strings.TrimSuffix(key, "="))
		}
	}
}

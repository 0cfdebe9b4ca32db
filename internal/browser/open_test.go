package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"darwin", "open http://localhost:8000"},
		{"linux", "xdg-open http://localhost:8000"},
		{"windows", "rundll32 url.dll,FileProtocolHandler http://localhost:8000"},
	}
	for _, tc := range tests {
		t.Run(tc.goos, func(t *testing.T) {
			cmd, err := command(tc.goos, "http://localhost:8000")
			require.NoError(t, err)
			assert.Equal(t, tc.want, strings.Join(cmd.Args, " "))
		})
	}
}

func TestCommandRejects(t *testing.T) {
	_, err := command("plan9", "http://localhost")
	assert.Error(t, err, "unsupported OS")
	_, err = command("linux", "file:///etc/passwd")
	assert.Error(t, err, "non-http scheme")
	_, err = command("linux", "://bad")
	assert.Error(t, err, "unparsable url")
}

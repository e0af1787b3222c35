// internal/engine/cli_test.go
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExec retourne une fabrique de commandes qui relance le binaire de test
// en mode processus auxiliaire, avec les variables d'environnement données
func fakeExec(env ...string) ExecCommandFunc {
	return func(ctx context.Context, name string, arg ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, arg...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		cmd.Env = append(cmd.Env, env...)
		return cmd
	}
}

// TestHelperProcess simule le client du moteur de conteneurs
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "no command given")
		os.Exit(2)
	}

	// args[0] est le nom du binaire, le reste ses arguments
	switch args[1] {
	case "--version":
		if os.Getenv("HELPER_UNAVAILABLE") == "1" {
			fmt.Fprintln(os.Stderr, "command not found")
			os.Exit(127)
		}
		fmt.Println("Docker version 27.1.1, build 6312585")
	case "images":
		if os.Getenv("HELPER_IMAGE_MISSING") != "1" {
			fmt.Println("f0b8a9a54136")
		}
	case "pull":
		if os.Getenv("HELPER_PULL_FAILS") == "1" {
			fmt.Fprintln(os.Stderr, "Error response from daemon: pull access denied")
			os.Exit(1)
		}
		fmt.Println("Status: Downloaded newer image")
	case "run":
		if marker := os.Getenv("HELPER_RUN_MARKER"); marker != "" {
			os.WriteFile(marker, []byte("run"), 0644)
		}
		fmt.Println("4f5e6d7c8b9a0f1e2d3c4b5a69788766554433221100ffeeddccbbaa99887766")
	case "ps":
		fmt.Println(`{"ID":"abc123def456","Image":"nginx:latest","Names":"web","State":"running","Status":"Up 2 minutes","Command":"nginx","Ports":"80/tcp"}`)
		fmt.Println(`{"ID":"456def789abc","Image":"redis:7","Names":"cache","State":"exited","Status":"Exited (0) 5 minutes ago","Command":"redis-server","Ports":""}`)
	case "stop":
		fmt.Println(args[2])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[1])
		os.Exit(2)
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewCLIEngineAvailable(t *testing.T) {
	e := NewCLIEngine("docker", quietLogger(), WithExecCommand(fakeExec()))
	assert.True(t, e.Available())
	assert.Equal(t, "docker", e.Name())
}

func TestNewCLIEngineUnavailable(t *testing.T) {
	e := NewCLIEngine("docker", quietLogger(),
		WithExecCommand(fakeExec("HELPER_UNAVAILABLE=1")))
	assert.False(t, e.Available())
}

// Un moteur indisponible doit court-circuiter toutes les opérations sans
// jamais relancer le client
func TestUnavailableShortCircuitsAllOperations(t *testing.T) {
	var calls atomic.Int32
	failing := fakeExec("HELPER_UNAVAILABLE=1")
	counted := func(ctx context.Context, name string, arg ...string) *exec.Cmd {
		calls.Add(1)
		return failing(ctx, name, arg...)
	}

	e := NewCLIEngine("docker", quietLogger(), WithExecCommand(counted))
	require.False(t, e.Available())
	callsAfterInit := calls.Load()

	ctx := context.Background()

	_, err := e.Version(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = e.ImageExists(ctx, "nginx:latest")
	assert.ErrorIs(t, err, ErrUnavailable)

	err = e.PullImage(ctx, "nginx:latest")
	assert.ErrorIs(t, err, ErrUnavailable)

	res, err := e.Run(ctx, RunOptions{Image: "nginx:latest"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, res.Success)
	assert.Equal(t, -1, res.ExitCode)

	_, err = e.ListContainers(ctx, false)
	assert.ErrorIs(t, err, ErrUnavailable)

	err = e.StopContainer(ctx, "abc123")
	assert.ErrorIs(t, err, ErrUnavailable)

	// Aucune invocation du client après la vérification initiale
	assert.Equal(t, callsAfterInit, calls.Load())
}

func TestVersion(t *testing.T) {
	e := NewCLIEngine("docker", quietLogger(), WithExecCommand(fakeExec()))

	version, err := e.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Docker version 27.1.1, build 6312585", version)
}

func TestImageExists(t *testing.T) {
	e := NewCLIEngine("docker", quietLogger(), WithExecCommand(fakeExec()))

	exists, err := e.ImageExists(context.Background(), "nginx:latest")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestImageExistsMissing(t *testing.T) {
	e := NewCLIEngine("docker", quietLogger(),
		WithExecCommand(fakeExec("HELPER_IMAGE_MISSING=1")))

	exists, err := e.ImageExists(context.Background(), "nginx:latest")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPullImageFailure(t *testing.T) {
	e := NewCLIEngine("docker", quietLogger(),
		WithExecCommand(fakeExec("HELPER_PULL_FAILS=1")))

	err := e.PullImage(context.Background(), "private/image:latest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pull access denied")
}

func TestRunDetached(t *testing.T) {
	e := NewCLIEngine("docker", quietLogger(), WithExecCommand(fakeExec()))

	res, err := e.Run(context.Background(), RunOptions{
		Image:  "nginx:latest",
		Detach: true,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t,
		"4f5e6d7c8b9a0f1e2d3c4b5a69788766554433221100ffeeddccbbaa99887766",
		res.Stdout)
}

func TestRunPullsMissingImage(t *testing.T) {
	e := NewCLIEngine("docker", quietLogger(),
		WithExecCommand(fakeExec("HELPER_IMAGE_MISSING=1")))

	res, err := e.Run(context.Background(), RunOptions{
		Image:  "nginx:latest",
		Detach: true,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

// Un échec de pull doit annuler le run sans que la commande run ne soit
// jamais invoquée
func TestRunPullFailureAbortsRun(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "run-invoked")

	e := NewCLIEngine("docker", quietLogger(), WithExecCommand(fakeExec(
		"HELPER_IMAGE_MISSING=1",
		"HELPER_PULL_FAILS=1",
		"HELPER_RUN_MARKER="+marker,
	)))

	res, err := e.Run(context.Background(), RunOptions{
		Image:  "private/image:latest",
		Detach: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, -1, res.ExitCode)
	assert.Contains(t, res.Error, `failed to pull image "private/image:latest"`)

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "run command should not have been invoked")
}

func TestListContainers(t *testing.T) {
	e := NewCLIEngine("docker", quietLogger(), WithExecCommand(fakeExec()))

	containers, err := e.ListContainers(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, containers, 2)

	assert.Equal(t, "abc123def456", containers[0].ID)
	assert.Equal(t, "nginx:latest", containers[0].Image)
	assert.Equal(t, "web", containers[0].Names)
	assert.Equal(t, "running", containers[0].State)

	assert.Equal(t, "456def789abc", containers[1].ID)
	assert.Equal(t, "exited", containers[1].State)
}

func TestStopContainer(t *testing.T) {
	e := NewCLIEngine("docker", quietLogger(), WithExecCommand(fakeExec()))

	err := e.StopContainer(context.Background(), "abc123def456")
	assert.NoError(t, err)
}

func TestRunArgs(t *testing.T) {
	e := &CLIEngine{binary: "docker"}

	tests := []struct {
		name string
		opts RunOptions
		want []string
	}{
		{
			name: "minimal",
			opts: RunOptions{Image: "nginx:latest"},
			want: []string{"run", "nginx:latest"},
		},
		{
			name: "detached with cleanup",
			opts: RunOptions{Image: "nginx:latest", Detach: true, Remove: true},
			want: []string{"run", "-d", "--rm", "nginx:latest"},
		},
		{
			name: "named with command",
			opts: RunOptions{
				Image:   "alpine:3.20",
				Name:    "worker",
				Command: []string{"sh", "-c", "echo hello"},
			},
			want: []string{"run", "--name", "worker", "alpine:3.20", "sh", "-c", "echo hello"},
		},
		{
			name: "mappings sorted for stable command lines",
			opts: RunOptions{
				Image:   "registry:2",
				Detach:  true,
				Volumes: map[string]string{"/b": "/data/b", "/a": "/data/a"},
				Ports:   map[string]string{"8080": "80", "5000": "5000"},
				Env:     map[string]string{"ZZZ": "1", "AAA": "2"},
				Network: "backend",
			},
			want: []string{
				"run", "-d",
				"-v", "/a:/data/a",
				"-v", "/b:/data/b",
				"-p", "5000:5000",
				"-p", "8080:80",
				"-e", "AAA=2",
				"-e", "ZZZ=1",
				"--network", "backend",
				"registry:2",
			},
		},
		{
			name: "interactive tty with workdir and user",
			opts: RunOptions{
				Image:       "alpine:3.20",
				Interactive: true,
				TTY:         true,
				WorkDir:     "/src",
				User:        "1000:1000",
				ExtraArgs:   []string{"--privileged"},
			},
			want: []string{
				"run", "-i", "-t",
				"-w", "/src",
				"-u", "1000:1000",
				"--privileged",
				"alpine:3.20",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.runArgs(tt.opts))
		})
	}
}

package task

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/pentops/camelkit/internal/config"
	"github.com/pentops/log.go/log"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	glob "github.com/ryanuber/go-glob"
)

const containerWorkDir = "/workspace"

var DefaultRegistryAuths = []config.RegistryAuth{{
	Registry: "ghcr.io/*",
	Github:   &config.GithubAuth{},
}, {
	Registry: "*.dkr.ecr.*.amazonaws.com/*",
	AwsEcr:   &config.AwsEcrAuth{},
}}

// DockerRunner runs the task command inside a container with the task
// directory mounted as the working directory.
type DockerRunner struct {
	Image string
	Vars  map[string]string

	Tracer trace.Tracer

	pulledImages map[string]bool
	pullLock     sync.Mutex

	client *client.Client
	auth   []config.RegistryAuth
}

func NewDockerRunner(settings config.DockerSettings) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
		client.WithTraceProvider(noop.NewTracerProvider()),
	)
	if err != nil {
		return nil, err
	}

	auth := append([]config.RegistryAuth{}, settings.RegistryAuth...)
	auth = append(auth, DefaultRegistryAuths...)

	return &DockerRunner{
		Image:        settings.Image,
		Vars:         map[string]string{},
		Tracer:       noop.NewTracerProvider().Tracer("camelkit/task"),
		pulledImages: make(map[string]bool),
		client:       cli,
		auth:         auth,
	}, nil
}

func (dw *DockerRunner) Close() error {
	return dw.client.Close()
}

func (dw *DockerRunner) Start(ctx context.Context, t Task) (*Execution, error) {
	envVars, err := mapEnvVars(t.Env, dw.Vars)
	if err != nil {
		return nil, err
	}

	dir := t.Dir
	if dir == "" {
		dir, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	args, err := containerArgs(dir, t.Args)
	if err != nil {
		return nil, err
	}

	ctx = log.WithField(ctx, "image", dw.Image)
	if err := dw.pullIfNeeded(ctx, dw.Image); err != nil {
		log.WithError(ctx, err).Error("failed to pull image")
		return nil, err
	}

	_, span := dw.Tracer.Start(ctx, t.Label)
	execution := newExecution(t)
	go func() {
		defer span.End()
		start := time.Now()
		code, err := dw.runContainer(ctx, t, dir, args, envVars)
		if err != nil {
			span.RecordError(err)
		}
		execution.complete(Result{
			ExitCode: code,
			Duration: time.Since(start),
			Err:      err,
		})
	}()
	return execution, nil
}

// containerArgs rewrites absolute host paths under dir, given as an argument
// or as a --flag=value, to their location in the mounted workspace. Paths
// outside dir are not visible in the container.
func containerArgs(dir string, args []string) ([]string, error) {
	out := make([]string, len(args))
	for idx, arg := range args {
		prefix, value := "", arg
		if strings.HasPrefix(arg, "-") {
			name, val, ok := strings.Cut(arg, "=")
			if !ok {
				out[idx] = arg
				continue
			}
			prefix, value = name+"=", val
		}
		if !filepath.IsAbs(value) {
			out[idx] = arg
			continue
		}
		rel, err := filepath.Rel(dir, value)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("path %s is outside the workspace %s, which is the only folder mounted in docker mode", value, dir)
		}
		out[idx] = prefix + path.Join(containerWorkDir, filepath.ToSlash(rel))
	}
	return out, nil
}

func (dw *DockerRunner) containerConfig(t Task, dir string, args []string, env []string) (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		AttachStdout: true,
		AttachStderr: true,
		Tty:          false,

		Env:        env,
		Image:      dw.Image,
		Entrypoint: []string{t.Command},
		Cmd:        args,
		WorkingDir: containerWorkDir,
	}
	if uid, gid := os.Getuid(), os.Getgid(); uid >= 0 && gid >= 0 {
		cfg.User = fmt.Sprintf("%d:%d", uid, gid)
	}
	return cfg, &container.HostConfig{
		Binds: []string{fmt.Sprintf("%s:%s", dir, containerWorkDir)},
	}
}

func (dw *DockerRunner) runContainer(ctx context.Context, t Task, dir string, args []string, env []string) (int, error) {
	t0 := time.Now()

	cfg, hostCfg := dw.containerConfig(t, dir, args, env)
	resp, err := dw.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		log.WithError(ctx, err).Error("failed to create container")
		return -1, err
	}
	defer func() {
		ctx := context.WithoutCancel(ctx)
		if remErr := dw.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{}); remErr != nil {
			log.WithError(ctx, remErr).Warn("failed to remove container in defer")
		}
	}()

	hj, err := dw.client.ContainerAttach(ctx, resp.ID, container.AttachOptions{
		Stdout: true,
		Stderr: true,
		Stream: true,
		Logs:   true,
	})
	if err != nil {
		log.WithError(ctx, err).Debug("container attach error")
		return -1, err
	}
	defer hj.Close()

	if err := dw.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		log.WithError(ctx, err).Debug("Container Start Error")
		return -1, err
	}
	log.WithField(ctx, "t0", time.Since(t0).String()).Debug("Container Started")

	out := &lineWriter{
		writeLine: func(line string) {
			log.WithField(ctx, "task", t.Label).Info(line)
		},
	}
	_, err = stdcopy.StdCopy(out, out, hj.Reader)
	out.flush()
	if err != nil {
		return -1, fmt.Errorf("output copy error: %w", err)
	}

	statusCh, errCh := dw.client.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(ctx, err).Debug("Container Wait Error")
			return -1, err
		}
		return -1, fmt.Errorf("container wait ended without status")
	case st := <-statusCh:
		log.WithField(ctx, "status-code", st.StatusCode).Debug("Container Exit")
		return int(st.StatusCode), nil
	}
}

func (dw *DockerRunner) markPull(img string) bool {
	dw.pullLock.Lock()
	defer dw.pullLock.Unlock()

	if dw.pulledImages[img] {
		return true
	}

	// only pull once per runner
	dw.pulledImages[img] = true
	return false
}

func (dw *DockerRunner) pullIfNeeded(ctx context.Context, img string) error {
	alreadyPulled := dw.markPull(img)
	if alreadyPulled {
		log.Debug(ctx, "image already pulled")
		return nil
	}

	images, err := dw.client.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", img)),
	})
	if err != nil {
		return fmt.Errorf("image list: %w", err)
	}
	if len(images) > 0 {
		log.Debug(ctx, "found images")
		return nil
	}

	pullOptions := image.PullOptions{}

	registryAuth := matchRegistryAuth(dw.auth, img)
	if registryAuth == nil {
		log.WithField(ctx, "image", img).Debug("no registry auth matched")
	} else {
		log.WithField(ctx, "registry", registryAuth.Registry).Debug("using auth")
		pullOptions.PrivilegeFunc = func(ctx context.Context) (string, error) {
			return registryCredentials(ctx, registryAuth)
		}
	}

	reader, err := dw.client.ImagePull(ctx, img, pullOptions)
	if err != nil {
		// ECR answers PrivilegeFunc challenges with the wrong status code
		if registryAuth == nil || !strings.Contains(err.Error(), "no basic auth credentials") {
			return fmt.Errorf("image pull: %w", err)
		}
		token, err := registryCredentials(ctx, registryAuth)
		if err != nil {
			return fmt.Errorf("image pull: %w", err)
		}
		pullOptions.PrivilegeFunc = nil
		pullOptions.RegistryAuth = token
		reader, err = dw.client.ImagePull(ctx, img, pullOptions)
		if err != nil {
			return fmt.Errorf("image pull: %w", err)
		}
	}

	log.Debug(ctx, "wait for imagePull")

	// The pull only completes once the reader is drained.
	_, err = io.Copy(io.Discard, reader)
	reader.Close()
	return err
}

// matchRegistryAuth returns the first auth whose wildcard registry pattern
// matches img.
func matchRegistryAuth(auths []config.RegistryAuth, img string) *config.RegistryAuth {
	for idx := range auths {
		if glob.Glob(auths[idx].Registry, img) {
			return &auths[idx]
		}
	}
	return nil
}

type basicAuth struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func registryCredentials(ctx context.Context, auth *config.RegistryAuth) (string, error) {
	var creds *basicAuth

	switch {
	case auth.Basic != nil:
		val := os.Getenv(auth.Basic.PasswordEnvVar)
		if val == "" {
			return "", fmt.Errorf("basic auth password (%s) not set", auth.Basic.PasswordEnvVar)
		}
		creds = &basicAuth{
			Username: auth.Basic.Username,
			Password: val,
		}

	case auth.Github != nil:
		envVar := auth.Github.TokenEnvVar
		if envVar == "" {
			envVar = "GITHUB_TOKEN"
		}
		val := os.Getenv(envVar)
		if val == "" {
			return "", fmt.Errorf("github token (%s) not set", envVar)
		}
		creds = &basicAuth{
			Username: "GITHUB",
			Password: val,
		}

	case auth.AwsEcr != nil:
		awsConfig, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to load configuration: %w", err)
		}

		ecrClient := ecr.NewFromConfig(awsConfig)
		resp, err := ecrClient.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
		if err != nil {
			return "", fmt.Errorf("failed to get authorization token: %w", err)
		}
		if len(resp.AuthorizationData) == 0 {
			return "", fmt.Errorf("no authorization data returned")
		}

		authData, err := base64.StdEncoding.DecodeString(*resp.AuthorizationData[0].AuthorizationToken)
		if err != nil {
			return "", fmt.Errorf("failed to decode authorization token: %w", err)
		}

		parts := strings.SplitN(string(authData), ":", 2)
		if len(parts) != 2 {
			return "", fmt.Errorf("invalid authorization token")
		}
		creds = &basicAuth{
			Username: parts[0],
			Password: parts[1],
		}

	default:
		return "", fmt.Errorf("registry auth for %s has no method", auth.Registry)
	}

	cred, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(cred), nil
}

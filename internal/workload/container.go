package workload

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	dockerbuild "github.com/docker/docker/api/types/build"
	dockercontainer "github.com/docker/docker/api/types/container"
	dockerimage "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/gokayokyay/stewardx/internal/model"
)

// Image kind tags (spec.md §4.5 Container payload).
const (
	imageKindFile  = "File"
	imageKindImage = "Image"
)

// containerPayload is the Container adapter's internal configuration.
type containerPayload struct {
	ImageKind string   `json:"image_kind"`
	ImageBody string   `json:"image_body"`
	Env       []string `json:"env"`
}

// ContainerTask builds or pulls an image, runs it, and yields combined
// stdout+stderr. Abort stops and kills the container (spec.md §4.5).
type ContainerTask struct {
	id      uuid.UUID
	payload containerPayload

	mu          sync.Mutex
	cli         *client.Client
	containerID string
}

func newContainerTask(taskID uuid.UUID, payload string) (*ContainerTask, *model.TaskExecError) {
	var p containerPayload
	if err := decodeTolerant(payload, &p); err != nil {
		return nil, model.NewMalformedSerde(err.Error())
	}
	if p.ImageKind != imageKindFile && p.ImageKind != imageKindImage {
		return nil, model.NewMalformedSerde(fmt.Sprintf("Required property not specified or invalid: 'image.kind' (%q)", p.ImageKind))
	}
	if strings.TrimSpace(p.ImageBody) == "" {
		return nil, model.NewMalformedSerde("Required property not specified: 'image.body'")
	}
	return &ContainerTask{id: taskID, payload: p}, nil
}

func (t *ContainerTask) ID() uuid.UUID { return t.id }
func (t *ContainerTask) Kind() string  { return KindContainer }

func (t *ContainerTask) Payload() (string, error) {
	return payloadString(t.payload)
}

// imageTag returns the image tag stewardx:<task-id-hex> (spec.md §4.5).
func (t *ContainerTask) imageTag() string {
	return "stewardx:" + hex.EncodeToString(t.id[:])
}

// Exec resolves an image (building it from a Dockerfile body for the
// File kind, or pulling it by reference for the Image kind), creates
// and starts a container from it, and yields combined stdout+stderr
// line by line (spec.md §4.5).
func (t *ContainerTask) Exec(ctx context.Context) (<-chan string, *model.TaskExecError) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, model.NewGeneric(fmt.Sprintf("docker client: %s", err))
	}

	ref, execErr := t.resolveImage(ctx, cli)
	if execErr != nil {
		_ = cli.Close()
		return nil, execErr
	}

	resp, err := cli.ContainerCreate(ctx, &dockercontainer.Config{
		Image: ref,
		Env:   t.payload.Env,
		Tty:   false,
	}, &dockercontainer.HostConfig{
		AutoRemove: true,
	}, nil, nil, "")
	if err != nil {
		_ = cli.Close()
		return nil, model.NewGeneric(fmt.Sprintf("create container: %s", err))
	}

	if err := cli.ContainerStart(ctx, resp.ID, dockercontainer.StartOptions{}); err != nil {
		_ = cli.Close()
		return nil, model.NewGeneric(fmt.Sprintf("start container: %s", err))
	}

	t.mu.Lock()
	t.cli = cli
	t.containerID = resp.ID
	t.mu.Unlock()

	out, err := cli.ContainerLogs(ctx, resp.ID, dockercontainer.LogsOptions{
		ShowStdout: true, ShowStderr: true, Follow: true,
	})
	if err != nil {
		_ = cli.Close()
		return nil, model.NewGeneric(fmt.Sprintf("attach logs: %s", err))
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		defer out.Close()
		defer cli.Close()

		statusCh, errCh := cli.ContainerWait(ctx, resp.ID, dockercontainer.WaitConditionNotRunning)
		demuxDone := make(chan struct{})
		go func() {
			defer close(demuxDone)
			streamDemuxed(out, lines)
		}()

		select {
		case <-errCh:
		case <-statusCh:
		case <-ctx.Done():
		}
		<-demuxDone
	}()

	return lines, nil
}

// resolveImage returns the image reference to run: it builds an image
// from the payload body for the File kind, or pulls it by reference for
// the Image kind (spec.md §4.5).
func (t *ContainerTask) resolveImage(ctx context.Context, cli *client.Client) (string, *model.TaskExecError) {
	switch t.payload.ImageKind {
	case imageKindImage:
		rc, err := cli.ImagePull(ctx, t.payload.ImageBody, dockerimage.PullOptions{})
		if err != nil {
			return "", model.NewGeneric(fmt.Sprintf("pull image: %s", err))
		}
		defer rc.Close()
		_, _ = io.Copy(io.Discard, rc)
		return t.payload.ImageBody, nil
	case imageKindFile:
		tag := t.imageTag()
		buildCtx, err := buildTarContext(t.payload.ImageBody)
		if err != nil {
			return "", model.NewGeneric(fmt.Sprintf("build context: %s", err))
		}
		resp, err := cli.ImageBuild(ctx, buildCtx, dockerbuild.ImageBuildOptions{
			Tags:       []string{tag},
			Dockerfile: "Dockerfile",
			Remove:     true,
		})
		if err != nil {
			return "", model.NewGeneric(fmt.Sprintf("build image: %s", err))
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return tag, nil
	default:
		return "", model.NewMalformedSerde(fmt.Sprintf("unknown image kind %q", t.payload.ImageKind))
	}
}

// buildTarContext wraps a Dockerfile body into the single-file tar
// archive the Docker build API expects as its context.
func buildTarContext(dockerfile string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name: "Dockerfile",
		Mode: 0o644,
		Size: int64(len(dockerfile)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, err
	}
	if _, err := tw.Write([]byte(dockerfile)); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

// streamDemuxed splits the Docker multiplexed log stream into lines,
// combining stdout and stderr onto one channel (spec.md §4.5).
func streamDemuxed(r io.Reader, out chan<- string) {
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, r)
		pw.CloseWithError(err)
	}()
	streamLines(pr, out)
}

// Abort stops and kills the running container (spec.md §4.5). It
// reports true iff the container was stopped/killed or had already
// exited.
func (t *ContainerTask) Abort() bool {
	t.mu.Lock()
	cli, id := t.cli, t.containerID
	t.mu.Unlock()
	if cli == nil || id == "" {
		return true
	}
	ctx := context.Background()
	err := cli.ContainerKill(ctx, id, "SIGKILL")
	if err != nil && !errdefs.IsNotFound(err) {
		return false
	}
	return true
}

// buildContainerPayload validates a {image: {kind, body}, env: [...]}
// property bag and returns its canonical payload string.
func buildContainerPayload(props json.RawMessage) (string, *model.TaskExecError) {
	body := string(props)
	if !gjson.Valid(body) {
		return "", model.NewMalformedSerde("payload is not valid JSON")
	}
	image := gjson.Get(body, "image")
	if !image.Exists() {
		return "", model.NewMalformedSerde("Required property not specified: 'image'")
	}
	kind := image.Get("kind").String()
	if kind != imageKindFile && kind != imageKindImage {
		return "", model.NewMalformedSerde("Required property not specified: 'image.kind'")
	}
	imgBody := image.Get("body").String()
	if strings.TrimSpace(imgBody) == "" {
		return "", model.NewMalformedSerde("Required property not specified: 'image.body'")
	}

	var env []string
	for _, v := range gjson.Get(body, "env").Array() {
		env = append(env, v.String())
	}

	out := "{}"
	var err error
	out, err = sjson.Set(out, "image_kind", kind)
	if err != nil {
		return "", model.NewGeneric(err.Error())
	}
	out, err = sjson.Set(out, "image_body", imgBody)
	if err != nil {
		return "", model.NewGeneric(err.Error())
	}
	out, err = sjson.Set(out, "env", env)
	if err != nil {
		return "", model.NewGeneric(err.Error())
	}
	return out, nil
}

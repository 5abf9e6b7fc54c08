package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gpurig/rig/internal/audit"
	"github.com/gpurig/rig/internal/models"
	"github.com/gpurig/rig/internal/rules"
	"github.com/gpurig/rig/internal/ssh"
	"github.com/gpurig/rig/internal/task"
	"github.com/gpurig/rig/internal/vast"
)

type stubTasks struct {
	launchTask *models.Task
	launchErr  error
	status     *models.TaskStatus
	statusErr  error
	kill       *models.KillResult
	killErr    error
	exec       *models.ExecResult
	execErr    error
	logText    string
	logErr     error

	gotEndpoint models.Endpoint
	gotCommand  string
	gotTaskID   string
	gotPID      int
	gotTail     int
	gotTimeout  time.Duration
}

func (s *stubTasks) Launch(_ context.Context, ep models.Endpoint, command, taskName string) (*models.Task, error) {
	s.gotEndpoint, s.gotCommand = ep, command
	return s.launchTask, s.launchErr
}

func (s *stubTasks) Status(_ context.Context, ep models.Endpoint, taskID string, pid, tailLines int) (*models.TaskStatus, error) {
	s.gotEndpoint, s.gotTaskID, s.gotPID, s.gotTail = ep, taskID, pid, tailLines
	return s.status, s.statusErr
}

func (s *stubTasks) Kill(_ context.Context, ep models.Endpoint, taskID string, pid int) (*models.KillResult, error) {
	s.gotEndpoint, s.gotTaskID, s.gotPID = ep, taskID, pid
	return s.kill, s.killErr
}

func (s *stubTasks) Exec(_ context.Context, ep models.Endpoint, command string, timeout time.Duration) (*models.ExecResult, error) {
	s.gotEndpoint, s.gotCommand, s.gotTimeout = ep, command, timeout
	return s.exec, s.execErr
}

func (s *stubTasks) FetchLog(_ context.Context, ep models.Endpoint, taskID string, w io.Writer) (int64, error) {
	s.gotEndpoint, s.gotTaskID = ep, taskID
	if s.logErr != nil {
		return 0, s.logErr
	}
	n, err := w.Write([]byte(s.logText))
	return int64(n), err
}

func newTestServer(t *testing.T, tasks TaskService, provider Provider) *httptest.Server {
	t.Helper()
	srv := New(Options{Tasks: tasks, Provider: provider, Rules: rules.RuleSet{}, PublicKey: "ssh-ed25519 AAAA"})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) errorDetail {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestLaunchTask(t *testing.T) {
	tasks := &stubTasks{launchTask: &models.Task{
		ID:      "train_a1b2c3d4",
		PID:     4242,
		LogPath: "/tmp/rig_task_train_a1b2c3d4.log",
	}}
	ts := newTestServer(t, tasks, nil)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/tasks", map[string]interface{}{
		"endpoint":  map[string]interface{}{"host": "gpu1", "port": 22, "user": "root"},
		"command":   "python train.py",
		"task_name": "train",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got models.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "train_a1b2c3d4", got.ID)
	require.Equal(t, 4242, got.PID)
	require.Equal(t, "python train.py", tasks.gotCommand)
	require.Equal(t, "gpu1", tasks.gotEndpoint.Host)
}

func TestLaunchValidationMapsTo400(t *testing.T) {
	tasks := &stubTasks{launchErr: &models.ValidationError{Field: "command", Message: "command is required"}}
	ts := newTestServer(t, tasks, nil)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/tasks", map[string]interface{}{
		"endpoint": map[string]interface{}{"host": "gpu1", "port": 22, "user": "root"},
		"command":  "",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	detail := decodeError(t, resp)
	require.Equal(t, "validation", detail.Class)
}

func TestTaskStatus(t *testing.T) {
	tasks := &stubTasks{status: &models.TaskStatus{
		State:      models.TaskStateRunning,
		LogTail:    []string{"epoch 1", "epoch 2"},
		TotalLines: 2,
	}}
	ts := newTestServer(t, tasks, nil)

	url := ts.URL + "/v1/tasks/train_a1b2c3d4?host=gpu1&port=22&user=root&pid=4242&tail_lines=10"
	resp := doJSON(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.TaskStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, models.TaskStateRunning, got.State)
	require.Equal(t, "train_a1b2c3d4", tasks.gotTaskID)
	require.Equal(t, 4242, tasks.gotPID)
	require.Equal(t, 10, tasks.gotTail)
}

func TestTaskStatusRequiresEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubTasks{}, nil)
	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/tasks/train_a1b2c3d4?pid=42", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestKillTask(t *testing.T) {
	tasks := &stubTasks{kill: &models.KillResult{OK: true, AlreadyDead: true}}
	ts := newTestServer(t, tasks, nil)

	url := ts.URL + "/v1/tasks/train_a1b2c3d4?host=gpu1&port=22&user=root&pid=4242"
	resp := doJSON(t, http.MethodDelete, url, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.KillResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.True(t, got.OK)
	require.True(t, got.AlreadyDead)
}

func TestTaskLog(t *testing.T) {
	tasks := &stubTasks{logText: "epoch 1\nepoch 2\n"}
	ts := newTestServer(t, tasks, nil)

	url := ts.URL + "/v1/tasks/train_a1b2c3d4/log?host=gpu1&port=22&user=root"
	resp := doJSON(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "epoch 1\nepoch 2\n", string(body))
}

func TestTaskLogNotFound(t *testing.T) {
	tasks := &stubTasks{logErr: fmt.Errorf("remote log: %w", task.ErrRemoteNotFound)}
	ts := newTestServer(t, tasks, nil)

	url := ts.URL + "/v1/tasks/train_a1b2c3d4/log?host=gpu1&port=22&user=root"
	resp := doJSON(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExec(t *testing.T) {
	tasks := &stubTasks{exec: &models.ExecResult{ExitStatus: 3, Stdout: "out", Stderr: "err"}}
	ts := newTestServer(t, tasks, nil)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/exec", map[string]interface{}{
		"endpoint":        map[string]interface{}{"host": "gpu1", "port": 22, "user": "root"},
		"command":         "nvidia-smi",
		"timeout_seconds": 15,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.ExecResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, 3, got.ExitStatus)
	require.Equal(t, 15*time.Second, tasks.gotTimeout)
}

func TestErrorClassMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		class  string
	}{
		{"authentication", ssh.ErrAuthentication, http.StatusUnauthorized, "authentication"},
		{"connectivity", fmt.Errorf("dial: %w", ssh.ErrConnectivity), http.StatusBadGateway, "connectivity"},
		{"timeout", &ssh.TimeoutError{Command: "sleep 100", Bound: time.Second}, http.StatusGatewayTimeout, "timeout"},
		{"partial failure", fmt.Errorf("cleanup: %w", task.ErrPartialFailure), http.StatusInternalServerError, "partial_failure"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tasks := &stubTasks{execErr: tc.err}
			ts := newTestServer(t, tasks, nil)

			resp := doJSON(t, http.MethodPost, ts.URL+"/v1/exec", map[string]interface{}{
				"endpoint": map[string]interface{}{"host": "gpu1", "port": 22, "user": "root"},
				"command":  "true",
			})
			require.Equal(t, tc.status, resp.StatusCode)
			detail := decodeError(t, resp)
			require.Equal(t, tc.class, detail.Class)
		})
	}
}

func TestMalformedBody(t *testing.T) {
	ts := newTestServer(t, &stubTasks{}, nil)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/tasks", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecoverMiddleware(t *testing.T) {
	srv := New(Options{Tasks: &stubTasks{}})
	router := srv.Router()
	router.HandleFunc("/panic", func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	// The daemon keeps serving after a panic.
	resp2, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestProviderUnavailable(t *testing.T) {
	ts := newTestServer(t, &stubTasks{}, nil)
	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/instances", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	detail := decodeError(t, resp)
	require.Equal(t, "unavailable", detail.Class)
}

func TestAuditRecording(t *testing.T) {
	journal, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer journal.Close()

	tasks := &stubTasks{launchTask: &models.Task{ID: "train_a1b2c3d4", PID: 1}}
	srv := New(Options{Tasks: tasks, Journal: journal})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/tasks", map[string]interface{}{
		"endpoint": map[string]interface{}{"host": "gpu1", "port": 22, "user": "root"},
		"command":  "python train.py",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	entries, err := journal.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "task.launch", entries[0].Op)
	require.Equal(t, "train_a1b2c3d4", entries[0].TaskID)
	require.Equal(t, "ok", entries[0].Outcome)
}

type fakeInstanceProvider struct {
	Provider

	instances  []models.Instance
	created    int
	labels     map[int]string
	attached   map[int]string
	destroyed  []int
	started    []int
	cmdOutput  string
	gotCommand string
}

func newFakeProvider() *fakeInstanceProvider {
	return &fakeInstanceProvider{
		labels:   map[int]string{},
		attached: map[int]string{},
	}
}

func (f *fakeInstanceProvider) ListInstances(context.Context, string) ([]models.Instance, error) {
	return f.instances, nil
}

func (f *fakeInstanceProvider) CreateInstance(_ context.Context, offerID int, _ vast.CreateOptions) (int, error) {
	f.created = offerID
	return 9001, nil
}

func (f *fakeInstanceProvider) DestroyInstance(_ context.Context, id int) error {
	f.destroyed = append(f.destroyed, id)
	return nil
}

func (f *fakeInstanceProvider) StartInstance(_ context.Context, id int) error {
	f.started = append(f.started, id)
	return nil
}

func (f *fakeInstanceProvider) LabelInstance(_ context.Context, id int, label string) error {
	f.labels[id] = label
	return nil
}

func (f *fakeInstanceProvider) AttachSSHKey(_ context.Context, id int, key string) error {
	f.attached[id] = key
	return nil
}

func (f *fakeInstanceProvider) WaitForReady(context.Context, int, time.Duration) error {
	return nil
}

func (f *fakeInstanceProvider) ExecuteCommand(_ context.Context, _ int, command string) (string, error) {
	f.gotCommand = command
	return f.cmdOutput, nil
}

func TestListInstances(t *testing.T) {
	provider := newFakeProvider()
	provider.instances = []models.Instance{{ID: 100, ActualStatus: "running"}}
	ts := newTestServer(t, &stubTasks{}, provider)

	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/instances", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Instances []models.Instance `json:"instances"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Instances, 1)
}

func TestCreateInstanceAppliesRules(t *testing.T) {
	provider := newFakeProvider()
	srv := New(Options{
		Tasks:    &stubTasks{},
		Provider: provider,
		Rules: rules.RuleSet{
			AutoAttachSSH: true,
			AutoLabel:     true,
			LabelPrefix:   "exp",
		},
		PublicKey: "ssh-ed25519 AAAA",
	})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/instances", map[string]interface{}{
		"offer_id": 555,
		"image":    "pytorch/pytorch",
		"ssh":      true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body createInstanceResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 9001, body.InstanceID)
	require.Contains(t, body.RulesApplied, "attach_ssh_key")
	require.Contains(t, body.RulesApplied, "auto_label")
	require.Equal(t, "ssh-ed25519 AAAA", provider.attached[9001])
	require.Equal(t, "exp-9001", provider.labels[9001])
}

func TestInstanceCommand(t *testing.T) {
	provider := newFakeProvider()
	provider.cmdOutput = "file_a\nfile_b\n"
	ts := newTestServer(t, &stubTasks{}, provider)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/instances/100/command", map[string]interface{}{
		"command": "ls -l /workspace",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "file_a\nfile_b\n", body["output"])
	require.Equal(t, "ls -l /workspace", provider.gotCommand)
}

func TestInstanceActionRoutes(t *testing.T) {
	provider := newFakeProvider()
	ts := newTestServer(t, &stubTasks{}, provider)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/instances/100/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []int{100}, provider.started)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/v1/instances/100", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []int{100}, provider.destroyed)
}

func TestInstanceBadID(t *testing.T) {
	ts := newTestServer(t, &stubTasks{}, newFakeProvider())
	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/instances/abc", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"vaultlauncher/internal/history"
	"vaultlauncher/internal/logging"
	"vaultlauncher/internal/notifications"
	"vaultlauncher/internal/tools"
	"vaultlauncher/internal/worker"
)

// ServiceName is the JSON-RPC service the server registers.
const ServiceName = "Launcher"

const defaultRequestTimeout = 2 * time.Minute

// Launcher receives the commands the server forwards.
type Launcher interface {
	Send(msg worker.Message)
}

// StateView exposes the state folded from launcher events. *worker.Tracker
// implements it.
type StateView interface {
	Snapshot() worker.Snapshot
	Wait(ctx context.Context, ready func(worker.Snapshot) bool) (worker.Snapshot, error)
}

// HistoryLister lists recorded backup runs. *history.Store implements it.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]*history.Run, error)
}

// Option customises the server.
type Option func(*service)

// WithHistory serves backup history from h.
func WithHistory(h HistoryLister) Option {
	return func(s *service) { s.history = h }
}

// WithNotifier lets clients send test notifications through n.
func WithNotifier(n notifications.Service) Option {
	return func(s *service) { s.notifier = n }
}

// WithRequestTimeout bounds how long a request waits for the launcher to
// settle. Backup and tool requests that wait for completion are not bounded.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Server exposes launcher control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, launcher Launcher, state StateView, logger *slog.Logger, opts ...Option) (*Server, error) {
	if launcher == nil || state == nil {
		return nil, errors.New("ipc server requires a launcher and its state")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	srv := &service{
		launcher: launcher,
		state:    state,
		logger:   logging.NewComponentLogger(logger, "ipc"),
		ctx:      serverCtx,
		timeout:  defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(srv)
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	if s.conns == nil {
		s.conns = make(map[net.Conn]struct{})
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the launcher if needed"))
				continue
			}
			if !s.track(conn) {
				_ = conn.Close()
				return
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.untrack(c)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server, drops open client connections and removes the
// socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
	s.mu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	launcher Launcher
	state    StateView
	history  HistoryLister
	notifier notifications.Service
	logger   *slog.Logger
	ctx      context.Context
	timeout  time.Duration
}

// request returns a logger tagged with a fresh request id and a context
// bounded by the request timeout.
func (s *service) request(op string) (*slog.Logger, context.Context, context.CancelFunc) {
	logger := s.logger.With(
		logging.String(logging.FieldRequestID, uuid.NewString()),
		logging.String("op", op),
	)
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	return logger, ctx, cancel
}

// await sends msg and waits until done accepts a state published after it.
func (s *service) await(ctx context.Context, msg worker.Message, done func(before, now worker.Snapshot) bool) (worker.Snapshot, error) {
	before := s.state.Snapshot()
	s.launcher.Send(msg)
	snap, err := s.state.Wait(ctx, func(now worker.Snapshot) bool { return done(before, now) })
	if err != nil {
		return snap, fmt.Errorf("launcher did not answer: %w", err)
	}
	return snap, nil
}

// usable rejects requests once the launcher hit a fatal error.
func usable(snap worker.Snapshot) error {
	if snap.Launcher == worker.StatusFatalError {
		return fmt.Errorf("launcher unusable: %s", snap.Fatal.Detail)
	}
	return nil
}

func requireOpen(snap worker.Snapshot) error {
	if err := usable(snap); err != nil {
		return err
	}
	if snap.Launcher != worker.StatusOpen {
		return fmt.Errorf("no vault open (launcher is %s)", snap.Launcher)
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = statusFromSnapshot(s.state.Snapshot())
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Open(req OpenRequest, resp *OpenResponse) error {
	if req.Path == "" {
		return errors.New("open requires a vault path")
	}
	if err := usable(s.state.Snapshot()); err != nil {
		return err
	}
	logger, ctx, cancel := s.request("open")
	defer cancel()
	logger.Debug("vault open requested", logging.String(logging.FieldVaultPath, req.Path))

	answered := make(map[worker.LauncherStatus]bool)
	snap, err := s.await(ctx, worker.OpenVault{Path: req.Path}, launcherSettled)
	for err == nil {
		next := openAnswer(snap.Launcher, req)
		if next == nil || answered[snap.Launcher] {
			break
		}
		answered[snap.Launcher] = true
		snap, err = s.await(ctx, next, launcherSettled)
	}
	if err != nil {
		return err
	}

	resp.Status = string(snap.Launcher)
	resp.VaultPath = snap.VaultPath
	if snap.OpenError.Kind != "" {
		resp.Error = &Problem{Kind: string(snap.OpenError.Kind), Detail: snap.OpenError.Detail}
	}
	logger.Info("vault open request finished",
		logging.String(logging.FieldEventType, "ipc_open"),
		logging.String(logging.FieldVaultPath, snap.VaultPath),
		logging.String("status", resp.Status))
	return nil
}

// launcherSettled accepts any launcher status after the request except the
// transient opening state.
func launcherSettled(before, now worker.Snapshot) bool {
	return now.LauncherSeq > before.LauncherSeq && now.Launcher != worker.StatusOpening
}

// openAnswer returns the message answering the question status asks, or nil
// when req leaves it unanswered.
func openAnswer(status worker.LauncherStatus, req OpenRequest) worker.Message {
	switch status {
	case worker.StatusCreateAsk:
		if req.Create {
			return worker.CreateFolderAndOpen{}
		}
	case worker.StatusLockAsk:
		if req.Force {
			return worker.ForceOpenVault{}
		}
	case worker.StatusInitialConfig:
		if req.Port > 0 {
			return worker.SetInitialConfig{Hostname: req.Hostname, Port: req.Port, Local: req.Local}
		}
	case worker.StatusCreateVaultAsk:
		if req.Username != "" {
			return worker.CreateVault{Username: req.Username, Password: req.Password}
		}
	}
	return nil
}

func (s *service) Close(_ CloseRequest, resp *CloseResponse) error {
	snap := s.state.Snapshot()
	if err := usable(snap); err != nil {
		return err
	}
	if snap.Launcher == worker.StatusClosed {
		resp.Status = string(snap.Launcher)
		return nil
	}
	logger, ctx, cancel := s.request("close")
	defer cancel()
	snap, err := s.await(ctx, worker.CloseVault{}, func(before, now worker.Snapshot) bool {
		return now.LauncherSeq > before.LauncherSeq && now.Launcher == worker.StatusClosed
	})
	if err != nil {
		return err
	}
	resp.Status = string(snap.Launcher)
	logger.Info("vault closed via IPC", logging.String(logging.FieldEventType, "ipc_close"))
	return nil
}

func (s *service) Start(req StartRequest, resp *StartResponse) error {
	if err := requireOpen(s.state.Snapshot()); err != nil {
		return err
	}
	logger, ctx, cancel := s.request("start")
	defer cancel()
	snap, err := s.await(ctx, worker.StartVault{OpenBrowser: req.OpenBrowser}, func(before, now worker.Snapshot) bool {
		if now.DaemonSeq <= before.DaemonSeq {
			return false
		}
		switch now.Daemon.Status {
		case worker.DaemonStatusRunning, worker.DaemonStatusError, worker.DaemonStatusStopped:
			return true
		}
		return false
	})
	if err != nil {
		return err
	}
	resp.Daemon = daemonFromSnapshot(snap)
	logger.Info("daemon start requested via IPC",
		logging.String(logging.FieldEventType, "ipc_daemon_start"),
		logging.String("status", resp.Daemon.Status))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	snap := s.state.Snapshot()
	if err := usable(snap); err != nil {
		return err
	}
	switch snap.Daemon.Status {
	case worker.DaemonStatusStopped, worker.DaemonStatusError:
		s.launcher.Send(worker.StopVault{})
		resp.Daemon = daemonFromSnapshot(snap)
		return nil
	}
	logger, ctx, cancel := s.request("stop")
	defer cancel()
	snap, err := s.await(ctx, worker.StopVault{}, func(before, now worker.Snapshot) bool {
		return now.DaemonSeq > before.DaemonSeq && now.Daemon.Status == worker.DaemonStatusStopped
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// A daemon that died while stopping leaves no Stopped event; report
	// whatever the launcher holds.
	resp.Daemon = daemonFromSnapshot(s.state.Snapshot())
	logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "ipc_daemon_stop"),
		logging.String("status", string(snap.Daemon.Status)))
	return nil
}

func (s *service) Backup(req BackupRequest, resp *BackupResponse) error {
	if err := requireOpen(s.state.Snapshot()); err != nil {
		return err
	}
	logger, ctx, cancel := s.request("backup")
	defer cancel()
	if req.Wait {
		ctx = s.ctx
	}
	snap, err := s.await(ctx, worker.RunBackup{Path: req.Path, Trigger: history.TriggerManual}, func(before, now worker.Snapshot) bool {
		if now.BackupSeq > before.BackupSeq {
			return true
		}
		return !req.Wait && now.BackupStartSeq > before.BackupStartSeq
	})
	if err != nil {
		return err
	}
	resp.Backup = backupFromSnapshot(snap)
	logger.Info("backup requested via IPC",
		logging.String(logging.FieldEventType, "ipc_backup"),
		logging.String("status", resp.Backup.Status),
		logging.Bool("wait", req.Wait))
	return nil
}

func (s *service) CancelBackup(_ CancelBackupRequest, resp *CancelBackupResponse) error {
	snap := s.state.Snapshot()
	if snap.Backup.Status != worker.TaskRunning {
		return nil
	}
	logger, ctx, cancel := s.request("cancel_backup")
	defer cancel()
	if _, err := s.await(ctx, worker.CancelBackup{}, func(before, now worker.Snapshot) bool {
		return now.BackupSeq > before.BackupSeq
	}); err != nil {
		return err
	}
	resp.Cancelled = true
	logger.Info("backup cancelled via IPC", logging.String(logging.FieldEventType, "ipc_backup_cancel"))
	return nil
}

func keyDone(before, now worker.Snapshot) bool {
	return now.KeySeq > before.KeySeq
}

func keyProblem(result worker.KeyResult) *Problem {
	if result.Status == worker.TaskSuccess {
		return nil
	}
	return &Problem{Kind: string(result.Kind), Detail: result.Detail}
}

func (s *service) ExportKey(req ExportKeyRequest, resp *ExportKeyResponse) error {
	if err := requireOpen(s.state.Snapshot()); err != nil {
		return err
	}
	logger, ctx, cancel := s.request("export_key")
	defer cancel()
	snap, err := s.await(ctx, worker.ExportKey{Username: req.Username, Password: req.Password}, keyDone)
	if err != nil {
		return err
	}
	if resp.Error = keyProblem(snap.Key); resp.Error != nil {
		return nil
	}
	resp.Key = snap.Key.Key
	if req.Copy {
		s.launcher.Send(worker.CopyToClipboard{Text: resp.Key})
	}
	logger.Info("vault key exported via IPC",
		logging.String(logging.FieldEventType, "ipc_key_export"),
		logging.Bool("copied", req.Copy))
	return nil
}

func (s *service) RecoverKey(req RecoverKeyRequest, resp *RecoverKeyResponse) error {
	key, err := parseKey(req.Key)
	if err != nil {
		return err
	}
	if req.Username == "" || req.Password == "" {
		return errors.New("recovery requires a username and password")
	}
	if err := requireOpen(s.state.Snapshot()); err != nil {
		return err
	}
	logger, ctx, cancel := s.request("recover_key")
	defer cancel()
	snap, err := s.await(ctx, worker.RecoverKey{Key: key, Username: req.Username, Password: req.Password}, keyDone)
	if err != nil {
		return err
	}
	resp.Error = keyProblem(snap.Key)
	resp.Recovered = resp.Error == nil
	logger.Info("vault key recovery finished via IPC",
		logging.String(logging.FieldEventType, "ipc_key_recover"),
		logging.Bool("recovered", resp.Recovered))
	return nil
}

func (s *service) RunTool(req RunToolRequest, resp *RunToolResponse) error {
	tool, err := tools.ParseTool(req.Tool)
	if err != nil {
		return err
	}
	if err := requireOpen(s.state.Snapshot()); err != nil {
		return err
	}
	logger, ctx, cancel := s.request("run_tool")
	defer cancel()
	if req.Wait {
		ctx = s.ctx
	}
	msg := worker.RunTool{Tool: tool, Username: req.Username, Password: req.Password}
	snap, err := s.await(ctx, msg, func(before, now worker.Snapshot) bool {
		if now.ToolSeq > before.ToolSeq {
			return true
		}
		return !req.Wait && now.ToolStartSeq > before.ToolStartSeq
	})
	if err != nil {
		return err
	}
	resp.Tool = toolFromSnapshot(snap)
	logger.Info("vault tool requested via IPC",
		logging.String(logging.FieldEventType, "ipc_tool"),
		logging.String("tool", string(tool)),
		logging.String("status", resp.Tool.Status))
	return nil
}

func (s *service) CancelTool(_ CancelToolRequest, resp *CancelToolResponse) error {
	if s.state.Snapshot().Tool.Status != worker.TaskRunning {
		return nil
	}
	logger, ctx, cancel := s.request("cancel_tool")
	defer cancel()
	if _, err := s.await(ctx, worker.CancelTool{}, func(before, now worker.Snapshot) bool {
		return now.ToolSeq > before.ToolSeq
	}); err != nil {
		return err
	}
	resp.Cancelled = true
	logger.Info("vault tool cancelled via IPC", logging.String(logging.FieldEventType, "ipc_tool_cancel"))
	return nil
}

func (s *service) UpdateConfig(req UpdateConfigRequest, resp *UpdateConfigResponse) error {
	snap := s.state.Snapshot()
	if err := usable(snap); err != nil {
		return err
	}
	plan, err := planConfigUpdate(snap, req)
	if err != nil {
		return err
	}
	if plan.needsVault {
		if err := requireOpen(snap); err != nil {
			return err
		}
	}
	logger, ctx, cancel := s.request("update_config")
	defer cancel()

	if len(plan.messages) > 0 || plan.settings != nil {
		before := s.state.Snapshot()
		if plan.settings != nil {
			s.launcher.Send(*plan.settings)
		}
		for _, msg := range plan.messages {
			s.launcher.Send(msg)
		}
		want := before.ConfigSeq + uint64(len(plan.messages))
		snap, err = s.state.Wait(ctx, func(now worker.Snapshot) bool {
			if now.ConfigSeq < want {
				return false
			}
			if plan.settings != nil {
				return now.Settings.Locale == plan.settings.Locale && now.Settings.Theme == plan.settings.Theme
			}
			return true
		})
		if err != nil {
			return fmt.Errorf("launcher did not answer: %w", err)
		}
	}

	resp.Config = configFromSnapshot(snap)
	resp.Locale = snap.Settings.Locale
	resp.Theme = snap.Settings.Theme
	logger.Info("settings updated via IPC",
		logging.String(logging.FieldEventType, "ipc_config_update"),
		logging.Int("config_messages", len(plan.messages)),
		logging.Bool("user_settings", plan.settings != nil))
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	if s.history == nil {
		return errors.New("backup history unavailable")
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	runs, err := s.history.List(ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Runs = HistoryRuns(runs)
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if s.notifier == nil {
		resp.Message = "Notifications are not configured (set notifications.ntfy_topic)"
		return nil
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	if err := s.notifier.Publish(ctx, notifications.EventTest, notifications.Payload{}); err != nil {
		resp.Message = "Test notification failed"
		return err
	}
	resp.Sent = true
	return nil
}

func (s *service) Finish(_ FinishRequest, resp *FinishResponse) error {
	s.logger.Info("launcher shutdown requested via IPC",
		logging.String(logging.FieldEventType, "ipc_finish"))
	s.launcher.Send(worker.Finish{})
	resp.Accepted = true
	return nil
}

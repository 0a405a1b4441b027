package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"glossa/internal/ledger"
	"glossa/internal/logging"
	"glossa/internal/pipeline"
	"glossa/internal/services"
)

// Backend is the daemon surface the RPC service exposes. The daemon
// implements it; keeping the dependency an interface lets the server live
// below the daemon package.
type Backend interface {
	Submit(ctx context.Context, req pipeline.Request) (*ledger.Job, error)
	Cancel(ctx context.Context, id string) error
	Job(ctx context.Context, id string) (*ledger.Job, error)
	Active(ctx context.Context) (*ledger.Job, error)
	Recent(ctx context.Context, limit int) ([]*ledger.Job, error)
	Stats(ctx context.Context) (map[ledger.State]int, error)
	LedgerHealth(ctx context.Context) (ledger.Health, error)
	TestNotification(ctx context.Context) error
	Info() DaemonInfo
	Shutdown()
}

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, backend Backend, logger *slog.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("ipc server requires a backend")
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

	rpcServer := rpc.NewServer()
	srv := &service{backend: backend, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Glossa", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Path returns the socket path the server listens on.
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
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun glossa daemon stop"))
	}
}

type service struct {
	backend Backend
	logger  *slog.Logger
	ctx     context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func stateCounts(counts map[ledger.State]int) map[string]int {
	out := make(map[string]int, len(counts))
	for state, n := range counts {
		out[string(state)] = n
	}
	return out
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	s.log().Debug("job submission requested", logging.String("source_file", req.SourcePath))
	job, err := s.backend.Submit(s.ctx, pipeline.Request{
		SourcePath:     req.SourcePath,
		TargetLanguage: req.TargetLanguage,
		SourceLanguage: req.SourceLanguage,
		Model:          req.Model,
		Engine:         req.Engine,
		OutputMode:     req.OutputMode,
		OutputDir:      req.OutputDir,
		Format:         req.Format,
	})
	if err != nil {
		if errors.Is(err, services.ErrBusy) {
			resp.Busy = true
			resp.Message = err.Error()
			return nil
		}
		return err
	}
	resp.Job = FromJob(job)
	s.log().Info("job submitted via IPC",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.String(logging.FieldJobID, job.ID))
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	s.log().Debug("job cancellation requested", logging.String(logging.FieldJobID, req.ID))
	if err := s.backend.Cancel(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Requested = true
	s.log().Info("job cancellation accepted",
		logging.String(logging.FieldEventType, "job_cancel"),
		logging.String(logging.FieldJobID, req.ID))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	info := s.backend.Info()
	resp.Running = true
	resp.PID = info.PID
	resp.Version = info.Version
	resp.StartedAt = info.StartedAt
	resp.SocketPath = info.SocketPath
	resp.LockPath = info.LockPath
	resp.DBPath = info.DBPath

	active, err := s.backend.Active(s.ctx)
	if err != nil {
		return err
	}
	if active != nil {
		dto := FromJob(active)
		resp.Active = &dto
	}
	counts, err := s.backend.Stats(s.ctx)
	if err != nil {
		return err
	}
	resp.Stats = stateCounts(counts)
	return nil
}

func (s *service) Describe(req DescribeRequest, resp *DescribeResponse) error {
	job, err := s.backend.Job(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Job = FromJob(job)
	return nil
}

func (s *service) Recent(req RecentRequest, resp *RecentResponse) error {
	jobs, err := s.backend.Recent(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Jobs = make([]JobStatus, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		resp.Jobs = append(resp.Jobs, FromJob(job))
	}
	return nil
}

func (s *service) Health(_ HealthRequest, resp *HealthResponse) error {
	health, err := s.backend.LedgerHealth(s.ctx)
	if err != nil {
		resp.Error = err.Error()
	}
	resp.DBPath = health.Path
	resp.Readable = health.Readable
	resp.IntegrityOK = health.IntegrityOK
	resp.TotalJobs = health.TotalJobs
	resp.ActiveJobID = health.ActiveJobID
	resp.StateCounts = stateCounts(health.StateCounts)
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.backend.TestNotification(s.ctx); err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = true
	resp.Message = "notification sent"
	return nil
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.PID = s.backend.Info().PID
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.log().Info("daemon shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	s.backend.Shutdown()
	resp.Stopping = true
	return nil
}

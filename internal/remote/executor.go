// Package remote runs a single command on a host over SSH with password
// authentication.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/telhawk-systems/honeynet/internal/config"
	"github.com/telhawk-systems/honeynet/internal/logging"
	"github.com/telhawk-systems/honeynet/internal/stage"
)

// Target identifies where and as whom a command runs.
type Target struct {
	Host       string
	Port       int
	Username   string
	Password   string
	KnownHosts string        // empty disables host key verification
	Timeout    time.Duration // bounds dial and handshake; 0 means none
}

// TargetFromConfig builds a Target from the remote configuration section.
func TargetFromConfig(rc config.RemoteConfig) Target {
	return Target{
		Host:       rc.Host,
		Port:       rc.Port,
		Username:   rc.Username,
		Password:   rc.Password,
		KnownHosts: rc.KnownHosts,
		Timeout:    rc.Timeout,
	}
}

// Addr returns host:port, defaulting the port to 22.
func (t Target) Addr() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Output is the captured result of a remote command.
type Output struct {
	ExitStatus int
	Stdout     string
	Stderr     string
}

// Executor runs commands on a Target.
type Executor struct {
	log *logging.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(log *logging.Logger) *Executor {
	return &Executor{log: log}
}

// Run executes command on target. Exit status 0 logs stdout at info; any
// other status logs stderr at error and returns ErrRemoteExecution, as does
// a connection or authentication failure.
func (e *Executor) Run(ctx context.Context, target Target, command string) (Output, error) {
	e.log.Info("Executing SSH command: %s", command)

	out, err := Exec(ctx, target, command)
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			e.log.Error("Command execution error: %s", out.Stderr)
		} else {
			e.log.Error("SSH command execution error: %v", err)
		}
		return out, fmt.Errorf("%w: %w", stage.ErrRemoteExecution, err)
	}

	e.log.Info("Command output: %s", out.Stdout)
	return out, nil
}

// Exec dials target and runs command in a fresh session. A non-zero remote
// exit status is returned as *ssh.ExitError alongside the captured output.
func Exec(ctx context.Context, target Target, command string) (Output, error) {
	clientCfg, err := clientConfig(target)
	if err != nil {
		return Output{ExitStatus: -1}, err
	}

	client, err := dial(ctx, target, clientCfg)
	if err != nil {
		return Output{ExitStatus: -1}, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Output{ExitStatus: -1}, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	// Closing the client unblocks Run when ctx ends first.
	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	err = session.Run(command)
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *ssh.ExitError
	switch {
	case err == nil:
		return out, nil
	case errors.As(err, &exitErr):
		out.ExitStatus = exitErr.ExitStatus()
		return out, err
	default:
		out.ExitStatus = -1
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		return out, fmt.Errorf("run %q: %w", command, err)
	}
}

func clientConfig(target Target) (*ssh.ClientConfig, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if target.KnownHosts != "" {
		cb, err := knownhosts.New(target.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            target.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(target.Password)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         target.Timeout,
	}, nil
}

func dial(ctx context.Context, target Target, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	addr := target.Addr()
	if target.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, target.Timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}

// Stage runs one configured remote command as a pipeline stage.
type Stage struct {
	executor *Executor
	target   Target
	command  string
}

// NewStage creates the demonstration remote stage from configuration.
func NewStage(rc config.RemoteConfig, log *logging.Logger) *Stage {
	return &Stage{executor: NewExecutor(log), target: TargetFromConfig(rc), command: rc.Command}
}

func (s *Stage) Name() string { return "remote" }

func (s *Stage) Run(ctx context.Context) stage.Result {
	out, err := s.executor.Run(ctx, s.target, s.command)
	if err != nil {
		return stage.Result{Stage: s.Name(), Status: stage.StatusFailed, Err: err}
	}
	return stage.OK(s.Name(), strings.TrimSpace(out.Stdout))
}

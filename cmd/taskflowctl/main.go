package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/splax/taskflow/internal/identity"
	"github.com/splax/taskflow/internal/metrics"
	"github.com/splax/taskflow/internal/ratelimit"
	"github.com/splax/taskflow/internal/repository/postgres"
	"github.com/splax/taskflow/internal/service/invite"
	"github.com/splax/taskflow/internal/service/progress"
	"github.com/splax/taskflow/internal/service/task"
	"github.com/splax/taskflow/internal/service/team"
	"github.com/splax/taskflow/internal/service/workspace"
	"github.com/splax/taskflow/pkg/config"
	"github.com/splax/taskflow/pkg/jwt"
	"github.com/splax/taskflow/pkg/logger"
)

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "workspace":
		err = commandWorkspace(args)
	case "invite":
		err = commandInvite(args)
	case "team":
		err = commandTeam(args)
	case "task":
		err = commandTask(args)
	case "version", "--version", "-v":
		fmt.Println(strings.TrimSpace(buildVersion))
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// engine wires the services over one postgres pool.
type engine struct {
	cfg        config.EngineConfig
	log        *slog.Logger
	pool       *pgxpool.Pool
	limiter    ratelimit.Limiter
	workspaces workspace.Service
	teams      team.Service
	tasks      task.Service
	invites    invite.Service
}

func openEngine(ctx context.Context) (*engine, error) {
	cfg, err := config.LoadEngineConfig()
	if err != nil {
		return nil, err
	}
	log := logger.NewWithFile("taskflowctl", logger.ParseLevel(cfg.LogLevel), cfg.LogFile)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	repo := postgres.New(pool)
	recorder := metrics.New(prometheus.DefaultRegisterer)

	limiter := openLimiter(cfg, log)

	teams := team.New(repo, repo, log)
	agg := progress.New(repo, repo, recorder, log)
	tasks := task.New(repo, teams, agg, recorder, log)
	teams = teams.WithMemberHook(tasks)

	invites := invite.New(repo, invite.Config{
		TTL:           cfg.InviteTTL,
		CodeBytes:     cfg.InviteCodeBytes,
		AttemptLimit:  cfg.InviteAttemptLimit,
		AttemptWindow: cfg.InviteAttemptSpan,
	}, recorder, log).WithLimiter(limiter)

	return &engine{
		cfg:        cfg,
		log:        log,
		pool:       pool,
		limiter:    limiter,
		workspaces: workspace.New(repo, repo, log),
		teams:      teams,
		tasks:      tasks,
		invites:    invites,
	}, nil
}

// openLimiter prefers the shared redis limiter. Without it invite attempts are
// only counted inside this process, which a one-shot command never repeats.
func openLimiter(cfg config.EngineConfig, log *slog.Logger) ratelimit.Limiter {
	if cfg.RateLimitRedisAddr == "" {
		log.Warn("RATE_LIMIT_REDIS_ADDR not set, invite throttling is effectively off")
		return ratelimit.NewMemory()
	}
	limiter, err := ratelimit.NewRedis(cfg.RateLimitRedisAddr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
	if err != nil {
		log.Warn("redis limiter unavailable, invite throttling is effectively off", "error", err)
		return ratelimit.NewMemory()
	}
	return limiter
}

func (e *engine) Close() {
	e.limiter.Close()
	e.pool.Close()
}

// identify resolves the caller from a token issued by this tool.
func (e *engine) identify(token string) (identity.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("TASKFLOW_TOKEN"))
	}
	if token == "" {
		return identity.Identity{}, errors.New("--token or TASKFLOW_TOKEN is required")
	}
	claims, err := jwt.Parse(token, e.cfg.JWTSecret)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("parse token: %w", err)
	}
	return identity.FromClaims(claims)
}

func (e *engine) issueToken(sub jwt.Subject) (string, error) {
	return jwt.GenerateToken(sub, e.cfg.JWTSecret, 24*time.Hour)
}

func withEngine(timeout time.Duration, fn func(ctx context.Context, e *engine) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}

func printUsage() {
	fmt.Printf("taskflowctl %s\n\n", buildVersion)
	fmt.Print(`Usage:
	taskflowctl workspace create --name <name> --domain acme.com --owner-email boss@acme.com [--max 25]
	taskflowctl invite create --token <jwt> [--role Admin|Member] [--ttl 72h] [--email user@acme.com]
	taskflowctl invite check --code <code> --email <email>
	taskflowctl invite redeem --code <code> --email <email>
	taskflowctl team create --token <jwt> --name <name> [--description text]
	taskflowctl team join --token <jwt> --team <team-id>
	taskflowctl team leave --token <jwt>
	taskflowctl team transfer --token <jwt> --team <team-id> --to <user-id>
	taskflowctl task create --token <jwt> --title <title> --description <text> --start <RFC3339> --end <RFC3339>
	taskflowctl task assign --token <jwt> --task <task-id> --team <team-id>
	taskflowctl task progress --token <jwt> --task <task-id> --state <state>
	taskflowctl task state --token <jwt> --task <task-id> --state <state>
	taskflowctl task bulk-state --token <jwt> --state <state> <task-id>...
	taskflowctl task list --token <jwt> [--scope created|assigned|all] [--q text] [--state s] [--range today|week|custom] [--from date --to date] [--sort start_desc] [--unassigned] [--page N]
	taskflowctl task stats --token <jwt>
	taskflowctl version

The token may also be supplied through TASKFLOW_TOKEN.
`)
}

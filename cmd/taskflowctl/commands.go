package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/internal/service/invite"
	"github.com/splax/taskflow/internal/service/task"
	"github.com/splax/taskflow/internal/service/workspace"
	"github.com/splax/taskflow/pkg/jwt"
)

const commandTimeout = 30 * time.Second

func commandWorkspace(args []string) error {
	if len(args) == 0 || args[0] != "create" {
		return errors.New("usage: taskflowctl workspace create")
	}
	fs := flag.NewFlagSet("workspace create", flag.ExitOnError)
	name := fs.String("name", "", "Workspace name")
	domainName := fs.String("domain", "", "Email domain members must use")
	ownerEmail := fs.String("owner-email", "", "Owner email address")
	maxMembers := fs.Int("max", 25, "Maximum number of members")
	fs.Parse(args[1:])

	return withEngine(commandTimeout, func(ctx context.Context, e *engine) error {
		ws, owner, err := e.workspaces.Create(ctx, workspace.CreateInput{
			Name:        *name,
			MaxMembers:  *maxMembers,
			EmailDomain: *domainName,
			OwnerEmail:  *ownerEmail,
		})
		if err != nil {
			return err
		}
		token, err := e.issueToken(jwt.Subject{UserID: owner.ID, WorkspaceID: ws.ID, Role: string(owner.Role)})
		if err != nil {
			return err
		}
		fmt.Printf("workspace created: %s (%s)\nowner: %s\ntoken: %s\n", ws.ID, ws.Name, owner.ID, token)
		return nil
	})
}

func commandInvite(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: taskflowctl invite [create|check|redeem]")
	}
	switch args[0] {
	case "create":
		return inviteCreate(args[1:])
	case "check":
		return inviteCheck(args[1:])
	case "redeem":
		return inviteRedeem(args[1:])
	default:
		return fmt.Errorf("unknown invite command: %s", args[0])
	}
}

func inviteCreate(args []string) error {
	fs := flag.NewFlagSet("invite create", flag.ExitOnError)
	token := fs.String("token", "", "Access token")
	role := fs.String("role", "Member", "Role to grant (Admin|Member)")
	ttl := fs.Duration("ttl", 0, "Invite lifetime (defaults to configuration)")
	email := fs.String("email", "", "Lock the invite to one email address")
	fs.Parse(args)

	return withEngine(commandTimeout, func(ctx context.Context, e *engine) error {
		actor, err := e.identify(*token)
		if err != nil {
			return err
		}
		inv, err := e.invites.Create(ctx, invite.CreateInput{Actor: actor, Role: *role, TTL: *ttl, Email: *email})
		if err != nil {
			return err
		}
		fmt.Printf("invite created: %s\nrole: %s\nexpires: %s\n", inv.Code, inv.RoleToGrant, inv.ExpiresAt.Format(time.RFC3339))
		return nil
	})
}

func inviteCheck(args []string) error {
	fs := flag.NewFlagSet("invite check", flag.ExitOnError)
	code := fs.String("code", "", "Invite code")
	email := fs.String("email", "", "Email address of the invitee")
	fs.Parse(args)

	return withEngine(commandTimeout, func(ctx context.Context, e *engine) error {
		inv, err := e.invites.Validate(ctx, *code, *email)
		if err != nil {
			return err
		}
		fmt.Printf("invite valid: workspace %s, role %s\n", inv.WorkspaceID, inv.RoleToGrant)
		return nil
	})
}

func inviteRedeem(args []string) error {
	fs := flag.NewFlagSet("invite redeem", flag.ExitOnError)
	code := fs.String("code", "", "Invite code")
	email := fs.String("email", "", "Email address of the new member")
	fs.Parse(args)

	return withEngine(commandTimeout, func(ctx context.Context, e *engine) error {
		user, err := e.invites.Redeem(ctx, *code, invite.NewUser{Email: *email})
		if err != nil {
			return err
		}
		token, err := e.issueToken(jwt.Subject{UserID: user.ID, WorkspaceID: user.WorkspaceID, Role: string(user.Role)})
		if err != nil {
			return err
		}
		fmt.Printf("user created: %s (%s)\ntoken: %s\n", user.ID, user.Role, token)
		return nil
	})
}

func commandTeam(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: taskflowctl team [create|join|leave|transfer]")
	}
	fs := flag.NewFlagSet("team "+args[0], flag.ExitOnError)
	token := fs.String("token", "", "Access token")
	name := fs.String("name", "", "Team name")
	description := fs.String("description", "", "Team description")
	teamID := fs.String("team", "", "Team identifier")
	to := fs.String("to", "", "New leader user identifier")
	fs.Parse(args[1:])

	return withEngine(commandTimeout, func(ctx context.Context, e *engine) error {
		actor, err := e.identify(*token)
		if err != nil {
			return err
		}
		me := domain.User{ID: actor.UserID, WorkspaceID: actor.WorkspaceID}
		switch args[0] {
		case "create":
			tm, err := e.teams.Create(ctx, *name, *description, me)
			if err != nil {
				return err
			}
			fmt.Printf("team created: %s (%s)\n", tm.ID, tm.Name)
		case "join":
			tm, err := e.teams.Join(ctx, *teamID, me)
			if err != nil {
				return err
			}
			fmt.Printf("joined team %s (%d members)\n", tm.Name, len(tm.MemberIDs))
		case "leave":
			if err := e.teams.Leave(ctx, me); err != nil {
				return err
			}
			fmt.Println("left team")
		case "transfer":
			if err := e.teams.TransferLeadership(ctx, *teamID, *to, actor.UserID, actor.WorkspaceID); err != nil {
				return err
			}
			fmt.Printf("leadership transferred to %s\n", *to)
		default:
			return fmt.Errorf("unknown team command: %s", args[0])
		}
		return nil
	})
}

func commandTask(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: taskflowctl task [create|assign|progress|state|bulk-state|list|stats]")
	}
	switch args[0] {
	case "create":
		return taskCreate(args[1:])
	case "assign":
		return taskAssign(args[1:])
	case "progress", "state":
		return taskSetState(args[0], args[1:])
	case "bulk-state":
		return taskBulkState(args[1:])
	case "list":
		return taskList(args[1:])
	case "stats":
		return taskStats(args[1:])
	default:
		return fmt.Errorf("unknown task command: %s", args[0])
	}
}

func taskCreate(args []string) error {
	fs := flag.NewFlagSet("task create", flag.ExitOnError)
	token := fs.String("token", "", "Access token")
	title := fs.String("title", "", "Task title")
	description := fs.String("description", "", "Task description")
	start := fs.String("start", "", "Start time (RFC3339)")
	end := fs.String("end", "", "End time (RFC3339)")
	fs.Parse(args)

	startAt, err := parseTime(*start)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	endAt, err := parseTime(*end)
	if err != nil {
		return fmt.Errorf("--end: %w", err)
	}
	return withEngine(commandTimeout, func(ctx context.Context, e *engine) error {
		actor, err := e.identify(*token)
		if err != nil {
			return err
		}
		t, err := e.tasks.Create(ctx, task.CreateInput{
			Title:       *title,
			Description: *description,
			CreatorID:   actor.UserID,
			WorkspaceID: actor.WorkspaceID,
			StartAt:     startAt,
			EndAt:       endAt,
		})
		if err != nil {
			return err
		}
		fmt.Printf("task created: %s (%s)\n", t.ID, t.State)
		return nil
	})
}

func taskAssign(args []string) error {
	fs := flag.NewFlagSet("task assign", flag.ExitOnError)
	token := fs.String("token", "", "Access token")
	taskID := fs.String("task", "", "Task identifier")
	teamID := fs.String("team", "", "Team identifier")
	fs.Parse(args)

	return withEngine(commandTimeout, func(ctx context.Context, e *engine) error {
		actor, err := e.identify(*token)
		if err != nil {
			return err
		}
		t, err := e.tasks.AssignToTeam(ctx, *taskID, *teamID, actor.UserID, actor.WorkspaceID)
		if err != nil {
			return err
		}
		fmt.Printf("task %s assigned (%s)\n", t.ID, t.State)
		return nil
	})
}

func taskSetState(mode string, args []string) error {
	fs := flag.NewFlagSet("task "+mode, flag.ExitOnError)
	token := fs.String("token", "", "Access token")
	taskID := fs.String("task", "", "Task identifier")
	rawState := fs.String("state", "", "Target state")
	fs.Parse(args)

	state, err := domain.ParseState(*rawState)
	if err != nil {
		return err
	}
	return withEngine(commandTimeout, func(ctx context.Context, e *engine) error {
		actor, err := e.identify(*token)
		if err != nil {
			return err
		}
		if mode == "progress" {
			t, err := e.tasks.SetMyProgress(ctx, *taskID, actor.UserID, actor.WorkspaceID, state)
			if err != nil {
				return err
			}
			fmt.Printf("progress recorded; task %s is %s\n", t.ID, t.State)
			return nil
		}
		tr, err := e.tasks.ChangeGlobalState(ctx, *taskID, state, actor.UserID, actor.WorkspaceID)
		if err != nil {
			return err
		}
		if !tr.Applied {
			fmt.Printf("task %s stays %s (%s -> %s is not a permitted transition)\n", tr.Task.ID, tr.From, tr.From, state)
			return nil
		}
		fmt.Printf("task %s: %s -> %s\n", tr.Task.ID, tr.From, tr.To)
		return nil
	})
}

func taskBulkState(args []string) error {
	fs := flag.NewFlagSet("task bulk-state", flag.ExitOnError)
	token := fs.String("token", "", "Access token")
	rawState := fs.String("state", "", "Target state")
	fs.Parse(args)

	state, err := domain.ParseState(*rawState)
	if err != nil {
		return err
	}
	ids := fs.Args()
	if len(ids) == 0 {
		return errors.New("at least one task id is required")
	}
	return withEngine(commandTimeout, func(ctx context.Context, e *engine) error {
		actor, err := e.identify(*token)
		if err != nil {
			return err
		}
		res := e.tasks.BulkChangeState(ctx, ids, state, actor.UserID, actor.WorkspaceID)
		fmt.Printf("attempted %d, applied %d, unchanged %d, skipped %d\n", res.Attempted, res.Applied, res.Unchanged, res.Skipped)
		return nil
	})
}

func taskList(args []string) error {
	fs := flag.NewFlagSet("task list", flag.ExitOnError)
	token := fs.String("token", "", "Access token")
	scope := fs.String("scope", "assigned", "Which tasks to list (created|assigned|all)")
	query := fs.String("q", "", "Search title and description")
	rawState := fs.String("state", "", "Only tasks in this state")
	rng := fs.String("range", "", "today|week|custom")
	from := fs.String("from", "", "Custom range start (RFC3339 or 2006-01-02)")
	to := fs.String("to", "", "Custom range end (RFC3339 or 2006-01-02)")
	sortBy := fs.String("sort", task.SortStartDesc, "start_asc|start_desc|end_asc|end_desc")
	unassigned := fs.Bool("unassigned", false, "Only tasks without a team")
	page := fs.Int("page", 1, "Page number")
	fs.Parse(args)

	filter := task.Filter{Query: *query, Range: *rng, Sort: *sortBy, OnlyUnassigned: *unassigned}
	if *rawState != "" {
		state, err := domain.ParseState(*rawState)
		if err != nil {
			return err
		}
		filter.State = state
	}
	var err error
	if *from != "" {
		if filter.From, err = parseTime(*from); err != nil {
			return fmt.Errorf("--from: %w", err)
		}
	}
	if *to != "" {
		if filter.To, err = parseTime(*to); err != nil {
			return fmt.Errorf("--to: %w", err)
		}
	}

	return withEngine(commandTimeout, func(ctx context.Context, e *engine) error {
		actor, err := e.identify(*token)
		if err != nil {
			return err
		}
		var tasks []domain.Task
		switch *scope {
		case "created":
			tasks, err = e.tasks.ListCreatedBy(ctx, actor.WorkspaceID, actor.UserID)
		case "assigned":
			tasks, err = e.tasks.ListAssignedTo(ctx, actor.WorkspaceID, actor.UserID)
		case "all":
			if !actor.CanManageWorkspace() {
				return fmt.Errorf("%w: listing every task needs Owner or Admin", domain.ErrForbidden)
			}
			tasks, err = e.tasks.ListAll(ctx, actor.WorkspaceID)
		default:
			return fmt.Errorf("unknown scope %q", *scope)
		}
		if err != nil {
			return err
		}
		filtered, err := e.tasks.Filter(tasks, filter)
		if err != nil {
			return err
		}
		items, pages := task.Page(filtered, *page, task.DefaultPageSize)
		for _, t := range items {
			mine := "-"
			if state, ok, err := e.tasks.MyState(ctx, actor.WorkspaceID, t.ID, actor.UserID); err == nil && ok {
				mine = state.String()
			}
			fmt.Printf("%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.State, mine, t.StartAt.Format(time.RFC3339), t.EndAt.Format(time.RFC3339))
		}
		fmt.Printf("page %d of %d\n", *page, pages)
		return nil
	})
}

func taskStats(args []string) error {
	fs := flag.NewFlagSet("task stats", flag.ExitOnError)
	token := fs.String("token", "", "Access token")
	fs.Parse(args)

	return withEngine(commandTimeout, func(ctx context.Context, e *engine) error {
		actor, err := e.identify(*token)
		if err != nil {
			return err
		}
		counts, err := e.tasks.CountByState(ctx, actor.WorkspaceID)
		if err != nil {
			return err
		}
		states := make([]string, 0, len(counts))
		for s := range counts {
			states = append(states, string(s))
		}
		sort.Strings(states)
		for _, s := range states {
			fmt.Printf("%s\t%d\n", s, counts[domain.State(s)])
		}
		return nil
	})
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", raw)
	}
	return ts.UTC(), nil
}

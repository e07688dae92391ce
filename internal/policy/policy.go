// Package policy decides who may change a task's global state.
//
// Rules are evaluated in order and the first rule whose Applies predicate
// matches decides; later rules are never consulted. The order is:
//
//	assigned member -> creator -> team leader -> deny
//
// A user who is both an assigned member and the creator is judged only as a
// member, so a member-creator cannot cancel.
package policy

import (
	"github.com/splax/taskflow/internal/domain"
)

// Subject is everything a decision depends on. Members lists the assigned
// members of the task; the team leader is not among them even when it holds a
// progress row.
type Subject struct {
	Task         domain.Task
	Members      []string
	UserID       string
	NewState     domain.State
	IsTeamLeader bool
}

// IsMember reports whether the acting user is among the task's assigned members.
func (s Subject) IsMember() bool {
	for _, id := range s.Members {
		if id == s.UserID {
			return true
		}
	}
	return false
}

// IsCreator reports whether the acting user created the task.
func (s Subject) IsCreator() bool {
	return s.UserID != "" && s.UserID == s.Task.CreatorID
}

// Rule is one entry of the ordered rule list.
type Rule struct {
	Name    string
	Applies func(Subject) bool
	Allow   func(Subject) bool
}

// Decision records the outcome and the rule that produced it.
type Decision struct {
	Allowed bool
	Rule    string
}

// RuleDefault is reported when no rule applies.
const RuleDefault = "default"

// rules is fixed at init and never mutated.
var rules = []Rule{
	{
		Name:    "assigned_member",
		Applies: Subject.IsMember,
		Allow: func(s Subject) bool {
			switch s.NewState {
			case domain.StateInterrupted:
				return s.Task.State == domain.StateOngoing
			case domain.StateOngoing:
				return s.Task.State == domain.StateInterrupted
			case domain.StateCompleted:
				return s.Task.State == domain.StateOngoing
			default:
				return false
			}
		},
	},
	{
		Name:    "creator",
		Applies: Subject.IsCreator,
		Allow: func(s Subject) bool {
			return s.NewState == domain.StateCanceled && s.Task.State != domain.StateCompleted
		},
	},
	{
		Name:    "team_leader",
		Applies: func(s Subject) bool { return s.IsTeamLeader },
		Allow: func(s Subject) bool {
			switch s.NewState {
			case domain.StateCanceled:
				return s.Task.State != domain.StateCompleted
			case domain.StateInterrupted:
				return s.Task.State == domain.StateOngoing
			case domain.StateOngoing:
				return s.Task.State == domain.StateInterrupted
			default:
				return false
			}
		},
	},
}

// Rules returns a copy of the ordered rule list.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// Evaluate runs the rule list against s.
func Evaluate(s Subject) Decision {
	for _, rule := range rules {
		if rule.Applies(s) {
			return Decision{Allowed: rule.Allow(s), Rule: rule.Name}
		}
	}
	return Decision{Allowed: false, Rule: RuleDefault}
}

// CanChangeState reports whether userID may set the task's global state to
// newState. members are the progress holders other than the team leader.
func CanChangeState(task domain.Task, members []string, userID string, newState domain.State, isTeamLeader bool) bool {
	return Evaluate(Subject{
		Task:         task,
		Members:      members,
		UserID:       userID,
		NewState:     newState,
		IsTeamLeader: isTeamLeader,
	}).Allowed
}

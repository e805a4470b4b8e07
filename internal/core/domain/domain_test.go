package domain

import (
	"testing"
	"time"
)

func TestRoleSet(t *testing.T) {
	if !AdminsOnly.Has(ProjectRoleAdmin) || AdminsOnly.Has(ProjectRoleMember) {
		t.Fatalf("AdminsOnly membership wrong")
	}
	if !Contributors.Has(ProjectRoleMember) || Contributors.Has(ProjectRoleViewer) {
		t.Fatalf("Contributors membership wrong")
	}
	for _, r := range []ProjectRole{ProjectRoleViewer, ProjectRoleMember, ProjectRoleAdmin} {
		if !AnyMember.Has(r) {
			t.Fatalf("AnyMember missing %s", r)
		}
	}
	if AnyMember.Has("owner") || ProjectRole("owner").Valid() {
		t.Fatalf("unknown role must never match")
	}
	if Roles("bogus") != 0 {
		t.Fatalf("unknown roles must be ignored")
	}
}

func TestComputeTaskStats(t *testing.T) {
	tasks := []Task{
		{Status: TaskStatusTodo},
		{Status: TaskStatusTodo},
		{Status: TaskStatusInProgress},
		{Status: TaskStatusDone},
	}

	got := ComputeTaskStats(tasks)
	want := TaskStats{Total: 4, Todo: 2, InProgress: 1, Review: 0, Done: 1}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if got.Total != got.Todo+got.InProgress+got.Review+got.Done {
		t.Fatalf("total must equal the sum of statuses")
	}

	if empty := ComputeTaskStats(nil); empty != (TaskStats{}) {
		t.Fatalf("expected zero stats, got %+v", empty)
	}
}

func TestUser_ChangedPasswordAfter(t *testing.T) {
	iat := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	u := &User{}

	if u.ChangedPasswordAfter(iat) {
		t.Fatalf("never changed must be false")
	}

	sameSecond := iat.Add(700 * time.Millisecond)
	u.PasswordChangedAt = &sameSecond
	if u.ChangedPasswordAfter(iat) {
		t.Fatalf("change within the issuing second must not invalidate")
	}

	later := iat.Add(2 * time.Second)
	u.PasswordChangedAt = &later
	if !u.ChangedPasswordAfter(iat) {
		t.Fatalf("later change must invalidate")
	}
}

func TestSubscription_Entitled(t *testing.T) {
	var nilSub *Subscription
	if nilSub.Entitled() {
		t.Fatalf("nil subscription must not be entitled")
	}
	for status, want := range map[SubscriptionStatus]bool{
		SubscriptionActive:   true,
		SubscriptionTrialing: true,
		SubscriptionPastDue:  false,
		SubscriptionCanceled: false,
	} {
		s := &Subscription{Status: status}
		if s.Entitled() != want {
			t.Fatalf("%s: expected %v", status, want)
		}
	}
}

func TestBillingEvent_OrderingKey(t *testing.T) {
	e := &BillingEvent{ID: "evt", Subscription: &ProviderSubscription{ID: "sub_1"}}
	if e.OrderingKey() != "sub_1" {
		t.Fatalf("expected subscription id")
	}
	e = &BillingEvent{ID: "evt", Checkout: &CheckoutCompletion{UserID: "u1"}}
	if e.OrderingKey() != "u1" {
		t.Fatalf("expected user id")
	}
	if (&BillingEvent{ID: "evt"}).OrderingKey() != "evt" {
		t.Fatalf("expected event id fallback")
	}
}

package ledger

import (
	"context"
	"errors"
	"testing"

	"finbot/internal/core"
)

func TestGoalLifecycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	user := core.User{ID: 10, Username: "bob"}

	goal := core.Goal{Name: "vacation", Target: kopecks(20000)}
	if err := svc.AddGoal(ctx, user, goal); err != nil {
		t.Fatalf("AddGoal: %v", err)
	}
	if err := svc.AddGoal(ctx, user, goal); !errors.Is(err, ErrGoalExists) {
		t.Errorf("duplicate AddGoal err = %v, want ErrGoalExists", err)
	}

	goals, err := svc.Goals(ctx, user)
	if err != nil {
		t.Fatalf("Goals: %v", err)
	}
	if len(goals) != 1 {
		t.Fatalf("goals = %d, want 1", len(goals))
	}
	if goals[0].Deadline != core.NoDeadline {
		t.Errorf("deadline = %q, want %q", goals[0].Deadline, core.NoDeadline)
	}

	if err := svc.UpdateGoalProgress(ctx, user, "vacation", kopecks(5000), false); err != nil {
		t.Fatalf("UpdateGoalProgress: %v", err)
	}
	newTarget := kopecks(25000)
	newName := "big vacation"
	err = svc.UpdateGoalDetails(ctx, user, "vacation", GoalUpdate{Rename: &newName, Target: &newTarget})
	if err != nil {
		t.Fatalf("UpdateGoalDetails: %v", err)
	}

	goals, _ = svc.Goals(ctx, user)
	g := goals[0]
	if g.Name != "big vacation" || g.Target != newTarget || g.Current != kopecks(5000) {
		t.Errorf("goal after updates = %+v", g)
	}

	if err := svc.DeleteGoal(ctx, user, "vacation"); !errors.Is(err, ErrGoalNotFound) {
		t.Errorf("delete by old name err = %v, want ErrGoalNotFound", err)
	}
	if err := svc.DeleteGoal(ctx, user, "big vacation"); err != nil {
		t.Fatalf("DeleteGoal: %v", err)
	}
	goals, _ = svc.Goals(ctx, user)
	if len(goals) != 0 {
		t.Errorf("goals after delete = %d, want 0", len(goals))
	}
}

func TestGoalsShareTableWithTransactions(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	user := core.User{ID: 11}

	if _, err := svc.AppendTransaction(ctx, user, NewTransaction{Amount: kopecks(100)}); err != nil {
		t.Fatal(err)
	}
	if err := svc.AddGoal(ctx, user, core.Goal{Name: "fund", Target: kopecks(500)}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AppendTransaction(ctx, user, NewTransaction{Amount: kopecks(-40)}); err != nil {
		t.Fatal(err)
	}

	txs, _ := svc.ListTransactions(ctx, user)
	if len(txs) != 2 {
		t.Fatalf("transactions = %d, want 2 (goal row excluded)", len(txs))
	}
	if txs[1].Balance != kopecks(60) {
		t.Errorf("balance skips goal row: got %v, want %v", txs[1].Balance, kopecks(60))
	}
	goals, _ := svc.Goals(ctx, user)
	if len(goals) != 1 {
		t.Errorf("goals = %d, want 1", len(goals))
	}

	if err := svc.Recalculate(ctx, user); err != nil {
		t.Fatal(err)
	}
	goals, _ = svc.Goals(ctx, user)
	if goals[0].Target != kopecks(500) {
		t.Errorf("recalculate touched goal row: %+v", goals[0])
	}
}

func TestLegacyGoalMigration(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	user := core.User{ID: 12, Username: "carol"}

	legacyColumns := []string{colNickname, colGoalName, colTargetAmount, colCurrentAmount, colDeadline, colCompleted, colCreatedDate}
	lh := newHeader(legacyColumns)

	perUser, _ := store.CreateTable(ctx, "goals_user_12", 0, 0)
	if _, err := perUser.AppendRow(ctx, legacyColumns); err != nil {
		t.Fatal(err)
	}
	if _, err := perUser.AppendRow(ctx, lh.encode(map[string]string{
		colGoalName: "car", colTargetAmount: "9000.00", colCurrentAmount: "1500.00",
	})); err != nil {
		t.Fatal(err)
	}

	global, _ := store.CreateTable(ctx, "goals", 0, 0)
	if _, err := global.AppendRow(ctx, legacyColumns); err != nil {
		t.Fatal(err)
	}
	if _, err := global.AppendRow(ctx, lh.encode(map[string]string{
		colNickname: "carol", colGoalName: "house", colTargetAmount: "100000.00",
	})); err != nil {
		t.Fatal(err)
	}
	if _, err := global.AppendRow(ctx, lh.encode(map[string]string{
		colNickname: "dave", colGoalName: "boat", colTargetAmount: "50000.00",
	})); err != nil {
		t.Fatal(err)
	}

	goals, err := svc.Goals(ctx, user)
	if err != nil {
		t.Fatalf("Goals: %v", err)
	}
	names := map[string]core.Goal{}
	for _, g := range goals {
		names[g.Name] = g
	}
	if len(names) != 2 {
		t.Fatalf("migrated goals = %v, want car and house", goals)
	}
	if g := names["car"]; g.Current != kopecks(1500) {
		t.Errorf("car progress = %v, want %v", g.Current, kopecks(1500))
	}
	if _, ok := names["boat"]; ok {
		t.Error("migrated another user's goal")
	}

	// Sources are cleared; dave's row stays behind.
	perRows, _ := perUser.ReadAll(ctx)
	if len(perRows) != 1 {
		t.Errorf("per-user legacy rows = %d, want header only", len(perRows))
	}
	globalRows, _ := global.ReadAll(ctx)
	if len(globalRows) != 2 {
		t.Errorf("global legacy rows = %d, want header + dave", len(globalRows))
	}

	// A second scan must not duplicate.
	svc2 := New(store, testLogger(), 0)
	goals, err = svc2.Goals(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if len(goals) != 2 {
		t.Errorf("goals after rescan = %d, want 2", len(goals))
	}
}

package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/eventboard/internal/persistence"
	"github.com/example/eventboard/internal/testfixtures"
)

func TestEventRepository(t *testing.T) {
	t.Parallel()

	t.Run("creates, reads, updates, and deletes events", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewStorageHarness(t)

		tokyo := time.FixedZone("JST", 9*60*60)
		start := time.Date(2024, time.March, 1, 9, 0, 0, 0, tokyo)
		event := testfixtures.NewEventFixture(
			testfixtures.WithEventTitle("Planning"),
			testfixtures.WithEventDescription("Quarterly"),
			testfixtures.WithEventWindow(start, start.Add(time.Hour)),
		)
		event = harness.InsertEvent(t, event)
		if event.ID == 0 {
			t.Fatalf("expected generated ID")
		}

		fetched, err := harness.Events.GetEvent(ctx, event.ID)
		if err != nil {
			t.Fatalf("GetEvent failed: %v", err)
		}
		if fetched.Title != "Planning" || fetched.Description != "Quarterly" {
			t.Fatalf("unexpected event: %#v", fetched)
		}
		if !fetched.Start.Equal(start) || fetched.Start.Location() != time.UTC {
			t.Fatalf("expected %v stored as UTC, got %v", start, fetched.Start)
		}

		fetched.Title = "Planning v2"
		fetched.End = fetched.End.Add(30 * time.Minute)
		if err := harness.Events.UpdateEvent(ctx, fetched); err != nil {
			t.Fatalf("UpdateEvent failed: %v", err)
		}
		again, err := harness.Events.GetEvent(ctx, event.ID)
		if err != nil {
			t.Fatalf("GetEvent failed: %v", err)
		}
		if again.Title != "Planning v2" || again.End.Sub(again.Start) != 90*time.Minute {
			t.Fatalf("update not persisted: %#v", again)
		}

		if err := harness.Events.DeleteEvent(ctx, event.ID); err != nil {
			t.Fatalf("DeleteEvent failed: %v", err)
		}
		if _, err := harness.Events.GetEvent(ctx, event.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if err := harness.Events.DeleteEvent(ctx, event.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
		if exists, err := harness.Events.EventExists(ctx, event.ID); err != nil || exists {
			t.Fatalf("EventExists = %v, %v", exists, err)
		}
	})

	t.Run("rejects events that end before they start", func(t *testing.T) {
		t.Parallel()

		harness := testfixtures.NewStorageHarness(t)
		base := testfixtures.ReferenceTime()
		bad := testfixtures.NewEventFixture(testfixtures.WithEventWindow(base, base.Add(-time.Minute)))

		_, err := harness.Events.CreateEvent(context.Background(), bad.Persistence())
		if !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
	})

	t.Run("filters by window", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewStorageHarness(t)
		base := testfixtures.ReferenceTime()

		early := harness.InsertEvent(t, testfixtures.NewEventFixture(testfixtures.WithEventWindow(base, base.Add(time.Hour))))
		middle := harness.InsertEvent(t, testfixtures.NewEventFixture(testfixtures.WithEventWindow(base.Add(2*time.Hour), base.Add(3*time.Hour))))
		harness.InsertEvent(t, testfixtures.NewEventFixture(testfixtures.WithEventWindow(base.Add(5*time.Hour), base.Add(6*time.Hour))))

		all, err := harness.Events.ListEvents(ctx, persistence.EventFilter{})
		if err != nil || len(all) != 3 {
			t.Fatalf("expected 3 events, got %d, %v", len(all), err)
		}
		if all[0].ID != early.ID {
			t.Fatalf("expected events ordered by start")
		}

		endsAfter := base.Add(time.Hour)
		startsBefore := base.Add(5 * time.Hour)
		window, err := harness.Events.ListEvents(ctx, persistence.EventFilter{EndsAfter: &endsAfter, StartsBefore: &startsBefore})
		if err != nil {
			t.Fatalf("ListEvents failed: %v", err)
		}
		if len(window) != 1 || window[0].ID != middle.ID {
			t.Fatalf("expected only the middle event, got %#v", window)
		}
	})
}

func TestUserRepository(t *testing.T) {
	t.Parallel()

	t.Run("creates, reads, updates, and deletes users", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewStorageHarness(t)

		user := harness.InsertUser(t, testfixtures.NewUserFixture(
			testfixtures.WithUserEmail("Alice@Example.com"),
			testfixtures.WithUserName("Alice", "Liddell"),
			testfixtures.WithUserAdmin(true),
		), "hash")

		fetched, err := harness.Users.GetUser(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if fetched.Email != "alice@example.com" || !fetched.IsAdmin || fetched.PasswordHash != "hash" {
			t.Fatalf("unexpected user data: %#v", fetched)
		}

		fetched.FirstName = "Alicia"
		fetched.IsAdmin = false
		fetched.PasswordHash = "ignored"
		if err := harness.Users.UpdateUser(ctx, fetched); err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}

		byEmail, err := harness.Users.GetUserByEmail(ctx, "ALICE@EXAMPLE.COM")
		if err != nil {
			t.Fatalf("GetUserByEmail failed: %v", err)
		}
		if byEmail.FirstName != "Alicia" || byEmail.IsAdmin || byEmail.PasswordHash != "hash" {
			t.Fatalf("unexpected updated user: %#v", byEmail)
		}

		if err := harness.Users.UpdatePassword(ctx, user.ID, "hash-2"); err != nil {
			t.Fatalf("UpdatePassword failed: %v", err)
		}
		if fetched, _ := harness.Users.GetUser(ctx, user.ID); fetched.PasswordHash != "hash-2" {
			t.Fatalf("password hash not updated: %q", fetched.PasswordHash)
		}

		if err := harness.Users.DeleteUser(ctx, user.ID); err != nil {
			t.Fatalf("DeleteUser failed: %v", err)
		}
		if _, err := harness.Users.GetUser(ctx, user.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := harness.Users.UpdatePassword(ctx, user.ID, "x"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for missing user, got %v", err)
		}
	})

	t.Run("enforces unique emails regardless of case", func(t *testing.T) {
		t.Parallel()

		harness := testfixtures.NewStorageHarness(t)
		harness.InsertUser(t, testfixtures.NewUserFixture(testfixtures.WithUserEmail("dup@example.com")), "hash")

		_, err := harness.Users.CreateUser(context.Background(),
			testfixtures.NewUserFixture(testfixtures.WithUserEmail("DUP@example.com")).Persistence("hash"))
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("requires a password hash", func(t *testing.T) {
		t.Parallel()

		harness := testfixtures.NewStorageHarness(t)
		_, err := harness.Users.CreateUser(context.Background(), testfixtures.NewUserFixture().Persistence(""))
		if !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
	})

	t.Run("lists with and without administrators", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewStorageHarness(t)
		harness.InsertUser(t, testfixtures.NewUserFixture(testfixtures.WithUserAdmin(true)), "hash")
		member := harness.InsertUser(t, testfixtures.NewUserFixture(), "hash")

		all, err := harness.Users.ListUsers(ctx, true)
		if err != nil || len(all) != 2 {
			t.Fatalf("expected 2 users, got %d, %v", len(all), err)
		}
		members, err := harness.Users.ListUsers(ctx, false)
		if err != nil || len(members) != 1 || members[0].ID != member.ID {
			t.Fatalf("expected only the member, got %#v, %v", members, err)
		}
	})
}

func TestAttendanceRepository(t *testing.T) {
	t.Parallel()

	t.Run("adds once and removes once", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewStorageHarness(t)
		event := harness.InsertEvent(t, testfixtures.NewEventFixture())
		user := harness.InsertUser(t, testfixtures.NewUserFixture(), "hash")

		created, err := harness.Attendance.AddAttendance(ctx, user.ID, event.ID)
		if err != nil || !created {
			t.Fatalf("first AddAttendance = %v, %v", created, err)
		}
		created, err = harness.Attendance.AddAttendance(ctx, user.ID, event.ID)
		if err != nil || created {
			t.Fatalf("second AddAttendance = %v, %v", created, err)
		}

		attendees, err := harness.Attendance.ListAttendees(ctx, event.ID)
		if err != nil || len(attendees) != 1 || attendees[0].ID != user.ID || attendees[0].Email != user.Email {
			t.Fatalf("unexpected attendees %v, %v", attendees, err)
		}

		after := event.Start
		events, err := harness.Events.ListEventsForUser(ctx, user.ID, &after)
		if err != nil || len(events) != 1 || events[0].ID != event.ID {
			t.Fatalf("expected an event starting at the bound to be listed, got %#v, %v", events, err)
		}
		after = event.Start.Add(time.Second)
		if events, _ := harness.Events.ListEventsForUser(ctx, user.ID, &after); len(events) != 0 {
			t.Fatalf("expected later bound to exclude the event, got %#v", events)
		}

		removed, err := harness.Attendance.RemoveAttendance(ctx, user.ID, event.ID)
		if err != nil || !removed {
			t.Fatalf("RemoveAttendance = %v, %v", removed, err)
		}
		removed, err = harness.Attendance.RemoveAttendance(ctx, user.ID, event.ID)
		if err != nil || removed {
			t.Fatalf("second RemoveAttendance = %v, %v", removed, err)
		}
	})

	t.Run("concurrent adds create one row", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewStorageHarness(t)
		event := harness.InsertEvent(t, testfixtures.NewEventFixture())
		user := harness.InsertUser(t, testfixtures.NewUserFixture(), "hash")

		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := harness.Attendance.AddAttendance(ctx, user.ID, event.ID)
				if err != nil {
					t.Errorf("AddAttendance failed: %v", err)
					return
				}
				if ok {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if created != 1 {
			t.Fatalf("expected exactly one insert to win, got %d", created)
		}
	})

	t.Run("reports missing references", func(t *testing.T) {
		t.Parallel()

		harness := testfixtures.NewStorageHarness(t)
		event := harness.InsertEvent(t, testfixtures.NewEventFixture())

		_, err := harness.Attendance.AddAttendance(context.Background(), 999, event.ID)
		if !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
		}
	})
}

func TestRecurrenceRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewStorageHarness(t)
	base := testfixtures.ReferenceTime()

	event := harness.InsertEvent(t, testfixtures.NewEventFixture(
		testfixtures.WithEventTitle("Standup"),
		testfixtures.WithEventWindow(base, base.Add(15*time.Minute)),
	))
	descriptor, occurrences, err := harness.Recurrences.CreateRecurrence(ctx, persistence.RecurrenceDescriptor{
		EventID:     event.ID,
		Cadence:     "daily",
		AnchorStart: base,
		Cutoff:      base.AddDate(0, 0, 3),
	}, []persistence.Occurrence{
		{Start: base.AddDate(0, 0, 1), End: base.AddDate(0, 0, 1).Add(15 * time.Minute)},
		{Start: base.AddDate(0, 0, 2), End: base.AddDate(0, 0, 2).Add(15 * time.Minute)},
	})
	if err != nil {
		t.Fatalf("CreateRecurrence failed: %v", err)
	}
	if descriptor.ID == 0 || len(occurrences) != 2 || occurrences[0].DescriptorID != descriptor.ID {
		t.Fatalf("unexpected recurrence %#v %#v", descriptor, occurrences)
	}

	descriptors, err := harness.Recurrences.ListDescriptors(ctx)
	if err != nil || len(descriptors) != 1 {
		t.Fatalf("ListDescriptors = %#v, %v", descriptors, err)
	}
	if !descriptors[0].AnchorStart.Equal(base) || !descriptors[0].Cutoff.Equal(base.AddDate(0, 0, 3)) {
		t.Fatalf("descriptor dates not round-tripped: %#v", descriptors[0])
	}

	details, err := harness.Recurrences.ListOccurrences(ctx, []int64{descriptor.ID})
	if err != nil || len(details) != 2 {
		t.Fatalf("ListOccurrences = %#v, %v", details, err)
	}
	if details[0].Title != "Standup" || details[0].EventID != event.ID {
		t.Fatalf("occurrence not joined with its event: %#v", details[0])
	}
	if none, _ := harness.Recurrences.ListOccurrences(ctx, []int64{descriptor.ID + 100}); len(none) != 0 {
		t.Fatalf("expected no occurrences for unknown descriptor, got %d", len(none))
	}

	between, err := harness.Recurrences.ListOccurrencesBetween(ctx, base.AddDate(0, 0, 2), base.AddDate(0, 0, 5))
	if err != nil || len(between) != 1 || !between[0].Start.Equal(base.AddDate(0, 0, 2)) {
		t.Fatalf("ListOccurrencesBetween = %#v, %v", between, err)
	}

	if err := harness.Events.DeleteEvent(ctx, event.ID); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if left, _ := harness.Recurrences.ListDescriptors(ctx); len(left) != 0 {
		t.Fatalf("expected descriptors to cascade, got %d", len(left))
	}
	if left, _ := harness.Recurrences.ListOccurrences(ctx, nil); len(left) != 0 {
		t.Fatalf("expected occurrences to cascade, got %d", len(left))
	}
}

func TestCleanupRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewStorageHarness(t)
	now := testfixtures.ReferenceTime()

	finished := harness.InsertEvent(t, testfixtures.NewEventFixture(testfixtures.WithEventWindow(now.Add(-2*time.Hour), now.Add(-time.Hour))))
	endsNow := harness.InsertEvent(t, testfixtures.NewEventFixture(testfixtures.WithEventWindow(now.Add(-time.Hour), now)))
	running := harness.InsertEvent(t, testfixtures.NewEventFixture(testfixtures.WithEventWindow(now.Add(-time.Hour), now.Add(time.Hour))))
	anchor := harness.InsertEvent(t, testfixtures.NewEventFixture(testfixtures.WithEventWindow(now.AddDate(0, 0, -14), now.AddDate(0, 0, -14).Add(time.Hour))))

	user := harness.InsertUser(t, testfixtures.NewUserFixture(), "hash")
	if _, err := harness.Attendance.AddAttendance(ctx, user.ID, finished.ID); err != nil {
		t.Fatalf("AddAttendance failed: %v", err)
	}

	_, _, err := harness.Recurrences.CreateRecurrence(ctx, persistence.RecurrenceDescriptor{
		EventID:     anchor.ID,
		Cadence:     "weekly",
		AnchorStart: anchor.Start,
		Cutoff:      now.AddDate(0, 0, 14),
	}, []persistence.Occurrence{
		{Start: anchor.Start.AddDate(0, 0, 7), End: anchor.End.AddDate(0, 0, 7)},
		{Start: anchor.Start.AddDate(0, 0, 14), End: anchor.End.AddDate(0, 0, 14)},
		{Start: anchor.Start.AddDate(0, 0, 21), End: anchor.End.AddDate(0, 0, 21)},
	})
	if err != nil {
		t.Fatalf("CreateRecurrence failed: %v", err)
	}

	result, err := harness.Cleanup.DeleteFinished(ctx, now)
	if err != nil {
		t.Fatalf("DeleteFinished failed: %v", err)
	}
	if result.EventsDeleted != 2 || result.OccurrencesDeleted != 1 {
		t.Fatalf("unexpected result %#v", result)
	}

	for _, id := range []int64{finished.ID, endsNow.ID} {
		if exists, _ := harness.Events.EventExists(ctx, id); exists {
			t.Fatalf("event %d should have been removed", id)
		}
	}
	for _, id := range []int64{running.ID, anchor.ID} {
		if exists, _ := harness.Events.EventExists(ctx, id); !exists {
			t.Fatalf("event %d should have been kept", id)
		}
	}
	if left, _ := harness.Recurrences.ListOccurrences(ctx, nil); len(left) != 2 {
		t.Fatalf("expected 2 future occurrences, got %d", len(left))
	}
	if attendees, _ := harness.Attendance.ListAttendees(ctx, finished.ID); len(attendees) != 0 {
		t.Fatalf("expected attendance to cascade with its event")
	}

	again, err := harness.Cleanup.DeleteFinished(ctx, now)
	if err != nil || again != (persistence.CleanupResult{}) {
		t.Fatalf("second sweep should be a no-op, got %#v, %v", again, err)
	}
}

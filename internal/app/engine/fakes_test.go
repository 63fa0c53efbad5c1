package engine

import (
	"context"
	"time"

	"github.com/habitloop/LivePulse/internal/app/model"
)

type fakeActivities struct {
	listRecentFn       func(ctx context.Context, limit int) ([]model.ActivityRow, error)
	listBySubjectFn    func(ctx context.Context, subjectID string, since time.Time, types []string) ([]model.ActivityRow, error)
}

func (f *fakeActivities) ListRecent(ctx context.Context, limit int) ([]model.ActivityRow, error) {
	if f.listRecentFn != nil {
		return f.listRecentFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeActivities) ListBySubjectSince(ctx context.Context, subjectID string, since time.Time, types []string) ([]model.ActivityRow, error) {
	if f.listBySubjectFn != nil {
		return f.listBySubjectFn(ctx, subjectID, since, types)
	}
	return nil, nil
}

type fakeUsers struct {
	getFn     func(ctx context.Context, id string) (*model.User, error)
	listFn    func(ctx context.Context) ([]model.User, error)
	countryFn func(ctx context.Context, ids []string) (map[string]string, error)
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*model.User, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeUsers) ListByXPDesc(ctx context.Context) ([]model.User, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeUsers) CountryCodes(ctx context.Context, ids []string) (map[string]string, error) {
	if f.countryFn != nil {
		return f.countryFn(ctx, ids)
	}
	return nil, nil
}

type fakeHistory struct {
	latestFn func(ctx context.Context, userID string, since time.Time) (*model.RankHistory, error)
}

func (f *fakeHistory) LatestSince(ctx context.Context, userID string, since time.Time) (*model.RankHistory, error) {
	if f.latestFn != nil {
		return f.latestFn(ctx, userID, since)
	}
	return nil, nil
}

type fakeRollups struct {
	listFn func(ctx context.Context, day string) ([]model.CountryRollup, error)
}

func (f *fakeRollups) ListByDay(ctx context.Context, day string) ([]model.CountryRollup, error) {
	if f.listFn != nil {
		return f.listFn(ctx, day)
	}
	return nil, nil
}

type fakeSessions struct {
	listFn func(ctx context.Context, since time.Time) ([]model.UserSession, error)
}

func (f *fakeSessions) ListActiveSince(ctx context.Context, since time.Time) ([]model.UserSession, error) {
	if f.listFn != nil {
		return f.listFn(ctx, since)
	}
	return nil, nil
}

// fakeFeed is an in-memory ChangeFeed: notifications written via emit are
// delivered to the subscriber until its context is cancelled.
type fakeFeed struct {
	ch chan model.ChangeNotification
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{ch: make(chan model.ChangeNotification, 32)}
}

func (f *fakeFeed) Subscribe(ctx context.Context, tables []string) (<-chan model.ChangeNotification, error) {
	out := make(chan model.ChangeNotification)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-f.ch:
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *fakeFeed) emit(n model.ChangeNotification) { f.ch <- n }

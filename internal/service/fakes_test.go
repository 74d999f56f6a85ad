package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/errors"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/model"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/provider"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/ratelimit"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/repository"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/timing"
)

// anchor is a Wednesday at 10:00 UTC, inside the test business window.
var anchor = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

var testHours = ratelimit.BusinessHours{StartMinute: 540, EndMinute: 1050}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fakeStore is an in-memory stand-in for the Postgres repositories. It
// reproduces the semantics the services rely on: CAS status updates, the
// live-item uniqueness constraint and the conditional quota increment.
type fakeStore struct {
	mu    sync.Mutex
	clock *fakeClock

	campaigns map[int64]*model.Campaign
	sequences map[int64][]model.CampaignMessage
	accounts  map[int64]*model.SendingAccount
	prospects map[int64]*model.Prospect
	items     map[int64]*model.QueueItem

	patterns map[string][]int
	cursors  map[string]int

	nextID int64
}

func newFakeStore(clock *fakeClock) *fakeStore {
	return &fakeStore{
		clock:     clock,
		campaigns: make(map[int64]*model.Campaign),
		sequences: make(map[int64][]model.CampaignMessage),
		accounts:  make(map[int64]*model.SendingAccount),
		prospects: make(map[int64]*model.Prospect),
		items:     make(map[int64]*model.QueueItem),
		patterns:  make(map[string][]int),
		cursors:   make(map[string]int),
	}
}

// ---- campaign repository ----

type fakeCampaignRepo struct{ s *fakeStore }

func (r *fakeCampaignRepo) GetByID(_ context.Context, id int64) (*model.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCampaignRepo) GetSequence(_ context.Context, campaignID int64) ([]model.CampaignMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seq := append([]model.CampaignMessage{}, r.s.sequences[campaignID]...)
	sort.Slice(seq, func(i, j int) bool { return seq[i].Slot < seq[j].Slot })
	return seq, nil
}

func (r *fakeCampaignRepo) UpdateStatus(_ context.Context, id int64, from, to model.CampaignStatus) error {
	if !from.CanTransitionTo(to) {
		return appErrors.ErrIllegalTransition
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || c.Status != from {
		return appErrors.ErrStaleStatus
	}
	c.Status = to
	return nil
}

func (r *fakeCampaignRepo) UpdateMessage(_ context.Context, campaignID int64, slot int, body string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.prospects {
		if p.CampaignID == campaignID &&
			p.Status != model.ProspectPending && p.Status != model.ProspectApproved {
			return repository.ErrSequenceLocked
		}
	}
	for i, m := range r.s.sequences[campaignID] {
		if m.Slot == slot {
			r.s.sequences[campaignID][i].Body = body
			return nil
		}
	}
	return repository.ErrSequenceLocked
}

// ---- prospect repository ----

type fakeProspectRepo struct{ s *fakeStore }

func (r *fakeProspectRepo) GetByID(_ context.Context, id int64) (*model.Prospect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prospects[id]
	if !ok {
		return nil, appErrors.NewProspectNotFound(id)
	}
	copied := *p
	return &copied, nil
}

func (r *fakeProspectRepo) Transition(_ context.Context, id int64, from, to model.ProspectStatus, note string) error {
	if !from.CanTransitionTo(to) {
		return appErrors.ErrIllegalTransition
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prospects[id]
	if !ok || p.Status != from {
		return appErrors.ErrStaleStatus
	}
	p.Status = to
	if note != "" {
		p.StatusNote = note
	}
	p.UpdatedAt = r.s.clock.Now()
	return nil
}

func (r *fakeProspectRepo) MarkContacted(_ context.Context, id int64, contactedAt, nextDueAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.prospects[id]; ok {
		p.ContactedAt = &contactedAt
		p.NextActionDueAt = &nextDueAt
	}
	return nil
}

func (r *fakeProspectRepo) MarkAccepted(_ context.Context, id int64, acceptedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.prospects[id]; ok {
		p.ConnectionAcceptedAt = &acceptedAt
		p.NextActionDueAt = nil
	}
	return nil
}

func (r *fakeProspectRepo) SetNextActionDue(_ context.Context, id int64, dueAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.prospects[id]; ok {
		p.NextActionDueAt = &dueAt
	}
	return nil
}

func (r *fakeProspectRepo) FlagExcluded(_ context.Context, id int64, note string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.prospects[id]; ok {
		p.StatusNote = note
	}
	return nil
}

func (r *fakeProspectRepo) ListDueAcceptanceChecks(_ context.Context, scope repository.Scope, now time.Time, limit int) ([]*model.Prospect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	due := []*model.Prospect{}
	for _, p := range r.s.prospects {
		if p.Status != model.ProspectConnectionRequested ||
			p.NextActionDueAt == nil || p.NextActionDueAt.After(now) {
			continue
		}
		if scope.WorkspaceID != 0 && p.WorkspaceID != scope.WorkspaceID {
			continue
		}
		if scope.CampaignID != 0 && p.CampaignID != scope.CampaignID {
			continue
		}
		copied := *p
		due = append(due, &copied)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextActionDueAt.Before(*due[j].NextActionDueAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *fakeProspectRepo) ListOrphans(_ context.Context, limit int) ([]*model.Prospect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	orphanable := map[model.ProspectStatus]bool{
		model.ProspectApproved:     true,
		model.ProspectConnected:    true,
		model.ProspectFollowUpDue:  true,
		model.ProspectFollowUpSent: true,
	}
	orphans := []*model.Prospect{}
	for _, p := range r.s.prospects {
		if !orphanable[p.Status] {
			continue
		}
		live := false
		for _, item := range r.s.items {
			if item.ProspectID == p.ID &&
				(item.Status == model.QueueItemPending || item.Status == model.QueueItemDispatched) {
				live = true
				break
			}
		}
		if !live {
			copied := *p
			orphans = append(orphans, &copied)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].ID < orphans[j].ID })
	if len(orphans) > limit {
		orphans = orphans[:limit]
	}
	return orphans, nil
}

// ---- account repository ----

type fakeAccountRepo struct{ s *fakeStore }

func (r *fakeAccountRepo) GetByID(_ context.Context, id int64) (*model.SendingAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, appErrors.NewAccountNotFound(id)
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAccountRepo) TryIncrementQuota(_ context.Context, id int64, localDay string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return false, appErrors.NewAccountNotFound(id)
	}
	if a.QuotaDay != localDay {
		a.QuotaDay = localDay
		a.SendsToday = 1
		return true, nil
	}
	if a.SendsToday >= a.DailySendLimit {
		return false, nil
	}
	a.SendsToday++
	return true, nil
}

func (r *fakeAccountRepo) DecrementQuota(_ context.Context, id int64, localDay string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[id]; ok && a.QuotaDay == localDay && a.SendsToday > 0 {
		a.SendsToday--
	}
	return nil
}

func (r *fakeAccountRepo) QuotaUsage(_ context.Context, workspaceID int64) ([]repository.AccountQuota, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	usage := []repository.AccountQuota{}
	for _, a := range r.s.accounts {
		if workspaceID != 0 && a.WorkspaceID != workspaceID {
			continue
		}
		usage = append(usage, repository.AccountQuota{
			AccountID:      a.ID,
			DisplayName:    a.DisplayName,
			SendsToday:     a.SendsToday,
			DailySendLimit: a.DailySendLimit,
			QuotaDay:       a.QuotaDay,
		})
	}
	sort.Slice(usage, func(i, j int) bool { return usage[i].AccountID < usage[j].AccountID })
	return usage, nil
}

// ---- queue repository ----

type fakeQueueRepo struct{ s *fakeStore }

func (r *fakeQueueRepo) Insert(_ context.Context, item *model.QueueItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.items {
		if existing.ProspectID == item.ProspectID && existing.MessageSlot == item.MessageSlot &&
			(existing.Status == model.QueueItemPending || existing.Status == model.QueueItemDispatched) {
			return repository.ErrDuplicateItem
		}
	}
	r.s.nextID++
	item.ID = r.s.nextID
	item.Status = model.QueueItemPending
	item.CreatedAt = r.s.clock.Now()
	item.UpdatedAt = item.CreatedAt
	copied := *item
	r.s.items[item.ID] = &copied
	return nil
}

func (r *fakeQueueRepo) GetActive(_ context.Context, prospectID int64, slot int) (*model.QueueItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, item := range r.s.items {
		if item.ProspectID == prospectID && item.MessageSlot == slot &&
			(item.Status == model.QueueItemPending || item.Status == model.QueueItemDispatched) {
			copied := *item
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeQueueRepo) ClaimDue(_ context.Context, scope repository.Scope, now time.Time, limit int) ([]*model.QueueItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	due := []*model.QueueItem{}
	for _, item := range r.s.items {
		if item.Status != model.QueueItemPending || item.ScheduledFor.After(now) {
			continue
		}
		if scope.WorkspaceID != 0 && item.WorkspaceID != scope.WorkspaceID {
			continue
		}
		if scope.CampaignID != 0 && item.CampaignID != scope.CampaignID {
			continue
		}
		due = append(due, item)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	if len(due) > limit {
		due = due[:limit]
	}
	claimed := make([]*model.QueueItem, 0, len(due))
	for _, item := range due {
		item.Status = model.QueueItemDispatched
		dispatchedAt := now
		item.DispatchedAt = &dispatchedAt
		copied := *item
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

func (r *fakeQueueRepo) Confirm(_ context.Context, id int64, providerMessageID string) error {
	return r.cas(id, model.QueueItemDispatched, func(item *model.QueueItem) {
		item.Status = model.QueueItemConfirmed
		item.ProviderMessageID = providerMessageID
		item.LastError = ""
	})
}

func (r *fakeQueueRepo) Fail(_ context.Context, id int64, lastError string) error {
	return r.cas(id, model.QueueItemDispatched, func(item *model.QueueItem) {
		item.Status = model.QueueItemFailed
		item.LastError = lastError
	})
}

func (r *fakeQueueRepo) RetryLater(_ context.Context, id int64, at time.Time, lastError string) error {
	return r.cas(id, model.QueueItemDispatched, func(item *model.QueueItem) {
		item.Status = model.QueueItemPending
		item.ScheduledFor = at
		item.AttemptCount++
		item.LastError = lastError
		item.DispatchedAt = nil
	})
}

func (r *fakeQueueRepo) Defer(_ context.Context, id int64, at time.Time, note string) error {
	return r.cas(id, model.QueueItemDispatched, func(item *model.QueueItem) {
		item.Status = model.QueueItemPending
		item.ScheduledFor = at
		item.LastError = note
		item.DispatchedAt = nil
	})
}

func (r *fakeQueueRepo) cas(id int64, expect model.QueueItemStatus, apply func(*model.QueueItem)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.items[id]
	if !ok || item.Status != expect {
		return repository.ErrItemStateChanged
	}
	apply(item)
	item.UpdatedAt = r.s.clock.Now()
	return nil
}

func (r *fakeQueueRepo) CancelForCampaign(_ context.Context, campaignID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, item := range r.s.items {
		if item.CampaignID == campaignID && item.Status == model.QueueItemPending {
			item.Status = model.QueueItemCancelled
			n++
		}
	}
	return n, nil
}

func (r *fakeQueueRepo) CancelForProspect(_ context.Context, prospectID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, item := range r.s.items {
		if item.ProspectID == prospectID && item.Status == model.QueueItemPending {
			item.Status = model.QueueItemCancelled
			n++
		}
	}
	return n, nil
}

func (r *fakeQueueRepo) MaxConfirmedSlot(_ context.Context, prospectID int64) (int, *time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	maxSlot := -1
	var confirmedAt *time.Time
	for _, item := range r.s.items {
		if item.ProspectID == prospectID && item.Status == model.QueueItemConfirmed && item.MessageSlot > maxSlot {
			maxSlot = item.MessageSlot
			at := item.UpdatedAt
			confirmedAt = &at
		}
	}
	return maxSlot, confirmedAt, nil
}

func (r *fakeQueueRepo) ListStuck(_ context.Context, dispatchedBefore time.Time, limit int) ([]*model.QueueItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stuck := []*model.QueueItem{}
	for _, item := range r.s.items {
		if item.Status == model.QueueItemDispatched &&
			item.DispatchedAt != nil && item.DispatchedAt.Before(dispatchedBefore) {
			copied := *item
			stuck = append(stuck, &copied)
		}
	}
	sort.Slice(stuck, func(i, j int) bool { return stuck[i].DispatchedAt.Before(*stuck[j].DispatchedAt) })
	if len(stuck) > limit {
		stuck = stuck[:limit]
	}
	return stuck, nil
}

func (r *fakeQueueRepo) CountStuck(_ context.Context, dispatchedBefore time.Time) (int, error) {
	stuck, _ := r.ListStuck(context.Background(), dispatchedBefore, 1<<30)
	return len(stuck), nil
}

func (r *fakeQueueRepo) DepthByStatus(_ context.Context) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	depth := map[string]int{}
	for _, item := range r.s.items {
		depth[string(item.Status)]++
	}
	return depth, nil
}

// ---- pattern store ----

type fakePatternStore struct{ s *fakeStore }

func patternKey(accountID int64, day string) string {
	return fmt.Sprintf("%d/%s", accountID, day)
}

func (r *fakePatternStore) Ensure(_ context.Context, accountID int64, day string, offsets []int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := patternKey(accountID, day)
	if _, ok := r.s.patterns[k]; !ok {
		r.s.patterns[k] = offsets
	}
	return nil
}

func (r *fakePatternStore) ConsumeOffset(_ context.Context, accountID int64, day string) (int, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := patternKey(accountID, day)
	offsets := r.s.patterns[k]
	cur := r.s.cursors[k]
	if cur >= len(offsets) {
		return 0, false, nil
	}
	r.s.cursors[k] = cur + 1
	return offsets[cur], true, nil
}

// ---- messenger ----

type sendCall struct {
	AccountID int64
	Target    string
	Message   string
	Slot0     bool
}

// fakeMessenger scripts provider behavior per target identifier. Errors
// queued for a target are consumed one per call, then sends succeed.
type fakeMessenger struct {
	mu           sync.Mutex
	nextID       int
	sendErrs     map[string][]error
	relationship map[string]provider.RelationshipStatus
	relErrs      map[string][]error
	calls        []sendCall
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		sendErrs:     make(map[string][]error),
		relationship: make(map[string]provider.RelationshipStatus),
		relErrs:      make(map[string][]error),
	}
}

func (m *fakeMessenger) failNext(target string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErrs[target] = append(m.sendErrs[target], errs...)
}

func (m *fakeMessenger) setRelationship(target string, rel provider.RelationshipStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relationship[target] = rel
}

func (m *fakeMessenger) failNextRelationship(target string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relErrs[target] = append(m.relErrs[target], errs...)
}

func (m *fakeMessenger) callsTo(target string) []sendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []sendCall{}
	for _, c := range m.calls {
		if c.Target == target {
			out = append(out, c)
		}
	}
	return out
}

func (m *fakeMessenger) send(accountID int64, target, message string, slot0 bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sendCall{AccountID: accountID, Target: target, Message: message, Slot0: slot0})
	if errs := m.sendErrs[target]; len(errs) > 0 {
		m.sendErrs[target] = errs[1:]
		return "", errs[0]
	}
	m.nextID++
	return fmt.Sprintf("pm-%d", m.nextID), nil
}

func (m *fakeMessenger) SendConnectionRequest(_ context.Context, accountID int64, target, message string) (string, error) {
	return m.send(accountID, target, message, true)
}

func (m *fakeMessenger) SendMessage(_ context.Context, accountID int64, target, message string) (string, error) {
	return m.send(accountID, target, message, false)
}

func (m *fakeMessenger) GetRelationshipStatus(_ context.Context, _ int64, target string) (provider.RelationshipStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if errs := m.relErrs[target]; len(errs) > 0 {
		m.relErrs[target] = errs[1:]
		return provider.RelationshipStatus{}, errs[0]
	}
	return m.relationship[target], nil
}

var _ provider.Messenger = (*fakeMessenger)(nil)

// ---- fixture ----

type fixture struct {
	store     *fakeStore
	clock     *fakeClock
	messenger *fakeMessenger

	campaigns *fakeCampaignRepo
	prospects *fakeProspectRepo
	accounts  *fakeAccountRepo
	queue     *fakeQueueRepo

	limiter   *ratelimit.Limiter
	writer    *QueueWriter
	gate      *AcceptanceGate
	processor *Processor
	sweeper   *Reconciler
	lifecycle *CampaignService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &fakeClock{now: anchor}
	store := newFakeStore(clock)
	messenger := newFakeMessenger()
	logger := zap.NewNop()

	campaigns := &fakeCampaignRepo{s: store}
	prospects := &fakeProspectRepo{s: store}
	accounts := &fakeAccountRepo{s: store}
	queue := &fakeQueueRepo{s: store}

	limiter := &ratelimit.Limiter{Accounts: accounts, Hours: testHours, Clock: clock}
	generator := timing.NewGenerator(&fakePatternStore{s: store}, testHours)

	writer := &QueueWriter{
		Campaigns: campaigns,
		Prospects: prospects,
		Accounts:  accounts,
		Queue:     queue,
		Limiter:   limiter,
		Timing:    generator,
		Clock:     clock,
		Logger:    logger,
	}
	gate := &AcceptanceGate{
		Campaigns:       campaigns,
		Prospects:       prospects,
		Queue:           queue,
		Provider:        messenger,
		Writer:          writer,
		Clock:           clock,
		Logger:          logger,
		RecheckInterval: 6 * time.Hour,
	}
	processor := &Processor{
		Campaigns:     campaigns,
		Prospects:     prospects,
		Accounts:      accounts,
		Queue:         queue,
		Writer:        writer,
		Gate:          gate,
		Limiter:       limiter,
		Provider:      messenger,
		Clock:         clock,
		Logger:        logger,
		BatchCap:      25,
		PoolSize:      4,
		MaxAttempts:   5,
		RetryBackoff:  30 * time.Minute,
		PauseDefer:    10 * time.Minute,
		AcceptRecheck: 6 * time.Hour,
	}
	sweeper := &Reconciler{
		Campaigns:       campaigns,
		Prospects:       prospects,
		Queue:           queue,
		Provider:        messenger,
		Writer:          writer,
		Clock:           clock,
		Logger:          logger,
		DispatchTimeout: 10 * time.Minute,
		Grace:           time.Hour,
		MaxAttempts:     5,
		BatchCap:        25,
	}
	lifecycle := &CampaignService{Campaigns: campaigns, Queue: queue, Logger: logger}

	return &fixture{
		store:     store,
		clock:     clock,
		messenger: messenger,
		campaigns: campaigns,
		prospects: prospects,
		accounts:  accounts,
		queue:     queue,
		limiter:   limiter,
		writer:    writer,
		gate:      gate,
		processor: processor,
		sweeper:   sweeper,
		lifecycle: lifecycle,
	}
}

func (f *fixture) addAccount(id int64, limit int) *model.SendingAccount {
	a := &model.SendingAccount{
		ID:               id,
		WorkspaceID:      1,
		DisplayName:      fmt.Sprintf("account-%d", id),
		Timezone:         "UTC",
		DailySendLimit:   limit,
		ConnectionStatus: model.AccountConnected,
	}
	f.store.mu.Lock()
	f.store.accounts[id] = a
	f.store.mu.Unlock()
	return a
}

func (f *fixture) addCampaign(id, accountID int64, connectionWaitHours, interWaitHours int, bodies ...string) *model.Campaign {
	c := &model.Campaign{
		ID:                   id,
		WorkspaceID:          1,
		Name:                 fmt.Sprintf("campaign-%d", id),
		Status:               model.CampaignActive,
		SendingAccountID:     accountID,
		ConnectionWaitHours:  connectionWaitHours,
		InterFollowupWaitHrs: interWaitHours,
	}
	seq := make([]model.CampaignMessage, 0, len(bodies))
	for slot, body := range bodies {
		seq = append(seq, model.CampaignMessage{CampaignID: id, Slot: slot, Body: body})
	}
	f.store.mu.Lock()
	f.store.campaigns[id] = c
	f.store.sequences[id] = seq
	f.store.mu.Unlock()
	return c
}

func (f *fixture) addProspect(id, campaignID int64, identifier string, status model.ProspectStatus) *model.Prospect {
	p := &model.Prospect{
		ID:                 id,
		CampaignID:         campaignID,
		WorkspaceID:        1,
		LinkedInIdentifier: identifier,
		FirstName:          "Ada",
		LastName:           "Okafor",
		Company:            "Brightloop",
		Status:             status,
	}
	f.store.mu.Lock()
	f.store.prospects[id] = p
	f.store.mu.Unlock()
	return p
}

func (f *fixture) prospect(id int64) *model.Prospect {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	copied := *f.store.prospects[id]
	return &copied
}

func (f *fixture) account(id int64) *model.SendingAccount {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	copied := *f.store.accounts[id]
	return &copied
}

func (f *fixture) itemsFor(prospectID int64, statuses ...model.QueueItemStatus) []*model.QueueItem {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	match := func(s model.QueueItemStatus) bool {
		if len(statuses) == 0 {
			return true
		}
		for _, want := range statuses {
			if s == want {
				return true
			}
		}
		return false
	}
	out := []*model.QueueItem{}
	for _, item := range f.store.items {
		if item.ProspectID == prospectID && match(item.Status) {
			copied := *item
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// addItem seeds a queue item directly, bypassing Insert's uniqueness
// check, for arranging test preconditions.
func (f *fixture) addItem(prospectID, campaignID int64, slot int, status model.QueueItemStatus, scheduledFor, updatedAt time.Time) *model.QueueItem {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.nextID++
	item := &model.QueueItem{
		ID:           f.store.nextID,
		ProspectID:   prospectID,
		CampaignID:   campaignID,
		WorkspaceID:  1,
		MessageSlot:  slot,
		ScheduledFor: scheduledFor,
		Status:       status,
		CreatedAt:    updatedAt,
		UpdatedAt:    updatedAt,
	}
	if status == model.QueueItemDispatched {
		dispatchedAt := updatedAt
		item.DispatchedAt = &dispatchedAt
	}
	f.store.items[item.ID] = item
	copied := *item
	return &copied
}

// setProspectStatus force-writes a status, bypassing the transition table,
// for arranging test preconditions.
func (f *fixture) setProspectStatus(id int64, status model.ProspectStatus) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.prospects[id].Status = status
}

func (f *fixture) setItemStatus(id int64, status model.QueueItemStatus) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.items[id].Status = status
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/forgo/rotativos/api/internal/database"
	"github.com/forgo/rotativos/api/internal/model"
	"github.com/forgo/rotativos/api/internal/rules"
)

// ============================================================================
// In-memory store
// ============================================================================

// memStore backs the in-memory repositories below. Each repository is a thin
// view over the same store, the way the SurrealDB repositories share one
// database.
type memStore struct {
	mu  sync.Mutex
	seq int

	seasons   map[string]*model.Season
	events    map[string]*model.Event
	blocks    map[string]*model.Block
	members   map[string]*model.Member
	rotativos map[string]*model.Rotativo
	rotOrder  []string
	entries   []*model.WaitingListEntry
	balances  map[string]*model.UserSeasonBalance

	// capacity of the rest of the season's schedule
	extraCapacity int
}

func newMemStore() *memStore {
	return &memStore{
		seasons:   map[string]*model.Season{},
		events:    map[string]*model.Event{},
		blocks:    map[string]*model.Block{},
		members:   map[string]*model.Member{},
		rotativos: map[string]*model.Rotativo{},
		balances:  map[string]*model.UserSeasonBalance{},
	}
}

func (s *memStore) nextID(table string) string {
	s.seq++
	return fmt.Sprintf("%s:%d", table, s.seq)
}

func abortErr(reason string) error {
	return fmt.Errorf("%w: %s", database.ErrAborted, database.Abort(reason))
}

func (s *memStore) countApprovedLocked(eventID string) int {
	n := 0
	for _, r := range s.rotativos {
		if r.EventID == eventID && r.Status == model.RotativoStatusAprobado {
			n++
		}
	}
	return n
}

// ----- events -----

type memEvents struct{ *memStore }

func (m memEvents) GetEvent(_ context.Context, eventID string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return nil, nil
	}
	c := *e
	return &c, nil
}

func (m memEvents) GetSeason(_ context.Context, seasonID string) (*model.Season, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	season, ok := m.seasons[seasonID]
	if !ok {
		return nil, nil
	}
	c := *season
	return &c, nil
}

func (m memEvents) GetBlock(_ context.Context, blockID string) (*model.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[blockID]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (m memEvents) ListTitleEvents(_ context.Context, titleID string) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Event
	for _, e := range m.events {
		if e.TitleID != nil && *e.TitleID == titleID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m memEvents) SumEffectiveCapacity(_ context.Context, seasonID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := m.extraCapacity
	for _, e := range m.events {
		if e.SeasonID == seasonID {
			total += e.EffectiveCupo()
		}
	}
	return total, nil
}

func (m memEvents) HasAssignedBlock(_ context.Context, userID, seasonID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.blocks {
		if b.SeasonID == seasonID && b.AssignedUserID != nil && *b.AssignedUserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m memEvents) SameDayEvents(_ context.Context, titleID string, date time.Time, types []string, excludeEventID string) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Event
	for _, e := range m.events {
		if e.ID == excludeEventID || e.TitleID == nil || *e.TitleID != titleID {
			continue
		}
		y1, m1, d1 := e.Date.Date()
		y2, m2, d2 := date.Date()
		if y1 != y2 || m1 != m2 || d1 != d2 {
			continue
		}
		for _, t := range types {
			if e.Type == t {
				c := *e
				out = append(out, &c)
				break
			}
		}
	}
	return out, nil
}

func (m memEvents) CountTitleEvents(_ context.Context, titleID, eventType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.TitleID != nil && *e.TitleID == titleID && e.Type == eventType {
			n++
		}
	}
	return n, nil
}

func (m memEvents) CountActiveRotativos(_ context.Context, userID string, eventIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := map[string]bool{}
	for _, id := range eventIDs {
		ids[id] = true
	}
	n := 0
	for _, r := range m.rotativos {
		if r.UserID == userID && ids[r.EventID] && r.IsActive() {
			n++
		}
	}
	return n, nil
}

func (m memEvents) CountActiveTitleRotativos(_ context.Context, userID, titleID, eventType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rotativos {
		e := m.events[r.EventID]
		if r.UserID != userID || !r.IsActive() || e == nil || e.TitleID == nil {
			continue
		}
		if *e.TitleID == titleID && e.Type == eventType {
			n++
		}
	}
	return n, nil
}

// ----- rotativos -----

type memRotativos struct{ *memStore }

func (m memRotativos) createLocked(rot *model.Rotativo) {
	rot.ID = m.nextID("rotativo")
	rot.CreatedOn = testNow
	rot.UpdatedOn = testNow
	c := *rot
	m.rotativos[rot.ID] = &c
	m.rotOrder = append(m.rotOrder, rot.ID)
}

func (m memRotativos) Create(_ context.Context, rot *model.Rotativo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createLocked(rot)
	return nil
}

func (m memRotativos) Get(_ context.Context, rotativoID string) (*model.Rotativo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rotativos[rotativoID]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (m memRotativos) UpdateStatus(_ context.Context, rotativoID, fromStatus, status string, motivo *string) (*model.Rotativo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rotativos[rotativoID]
	if !ok || r.Status != fromStatus {
		return nil, nil
	}
	r.Status = status
	if motivo != nil {
		r.Motivo = motivo
	}
	c := *r
	return &c, nil
}

func (m memRotativos) GetOpenForUserEvent(_ context.Context, userID, eventID string) (*model.Rotativo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.rotOrder {
		r := m.rotativos[id]
		if r.UserID == userID && r.EventID == eventID && (r.IsActive() || r.Status == model.RotativoStatusEnEspera) {
			c := *r
			return &c, nil
		}
	}
	return nil, nil
}

func (m memRotativos) ListByBlock(_ context.Context, blockID string) ([]*model.Rotativo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Rotativo
	for _, id := range m.rotOrder {
		r := m.rotativos[id]
		if r.BlockID != nil && *r.BlockID == blockID && r.IsActive() {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m memRotativos) CreateBlockRotativos(_ context.Context, blockID, userID string, rotativos []*model.Rotativo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[blockID]
	if !ok || (b.Status != model.BlockStatusDisponible && deref(b.AssignedUserID) != userID) {
		return abortErr(model.AbortBlockTaken)
	}
	assigned := userID
	b.AssignedUserID = &assigned
	b.Status = model.BlockStatusAsignado
	for _, rot := range rotativos {
		m.createLocked(rot)
	}
	return nil
}

func (m memRotativos) CancelBlockRotativos(_ context.Context, blockID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[blockID]
	if !ok || b.Status != model.BlockStatusAsignado {
		return abortErr(model.AbortBlockLocked)
	}
	for _, r := range m.rotativos {
		if r.BlockID != nil && *r.BlockID == blockID && r.IsActive() {
			r.Status = model.RotativoStatusCancelado
		}
	}
	b.AssignedUserID = nil
	b.Status = model.BlockStatusDisponible
	return nil
}

func (m memRotativos) CountApproved(_ context.Context, eventID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countApprovedLocked(eventID), nil
}

func (m memRotativos) ListApprovedForBalance(_ context.Context, userID, seasonID string) ([]model.BalanceSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BalanceSource
	for _, id := range m.rotOrder {
		r := m.rotativos[id]
		if r.UserID != userID || r.SeasonID != seasonID || r.Status != model.RotativoStatusAprobado {
			continue
		}
		src := model.BalanceSource{RequestType: r.RequestType, InBlock: r.BlockID != nil}
		if e := m.events[r.EventID]; e != nil {
			src.EventDate = e.Date
		}
		out = append(out, src)
	}
	return out, nil
}

// ----- waiting list -----

type memQueue struct{ *memStore }

func (m memQueue) Append(_ context.Context, entry *model.WaitingListEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := 0
	for _, e := range m.entries {
		if e.EventID != entry.EventID {
			continue
		}
		if e.UserID == entry.UserID {
			return database.ErrDuplicate
		}
		if e.Position > last {
			last = e.Position
		}
	}
	entry.ID = m.nextID("waiting_list")
	entry.Position = last + 1
	entry.CreatedOn = testNow
	c := *entry
	m.entries = append(m.entries, &c)
	return nil
}

func (m memQueue) sortedLocked(eventID string) []*model.WaitingListEntry {
	var out []*model.WaitingListEntry
	for _, e := range m.entries {
		if e.EventID == eventID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (m memQueue) Head(_ context.Context, eventID string) (*model.WaitingListEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := m.sortedLocked(eventID)
	if len(sorted) == 0 {
		return nil, nil
	}
	return sorted[0], nil
}

func (m memQueue) GetByUserEvent(_ context.Context, userID, eventID string) (*model.WaitingListEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.UserID == userID && e.EventID == eventID {
			c := *e
			return &c, nil
		}
	}
	return nil, nil
}

func (m memQueue) List(_ context.Context, eventID string) ([]*model.WaitingListEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked(eventID), nil
}

func (m memQueue) Count(_ context.Context, eventID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sortedLocked(eventID)), nil
}

func (m memQueue) Position(ctx context.Context, userID, eventID string) (int, error) {
	e, err := m.GetByUserEvent(ctx, userID, eventID)
	if err != nil || e == nil {
		return 0, err
	}
	return e.Position, nil
}

func (m memQueue) removeLocked(entryID string) bool {
	for i, e := range m.entries {
		if e.ID != entryID {
			continue
		}
		m.entries = append(m.entries[:i], m.entries[i+1:]...)
		for _, other := range m.entries {
			if other.EventID == e.EventID && other.Position > e.Position {
				other.Position--
			}
		}
		return true
	}
	return false
}

func (m memQueue) hasLocked(entryID string) bool {
	for _, e := range m.entries {
		if e.ID == entryID {
			return true
		}
	}
	return false
}

func (m memQueue) Withdraw(_ context.Context, entry *model.WaitingListEntry, rotativoStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasLocked(entry.ID) {
		return abortErr(model.AbortEntryGone)
	}
	if r, ok := m.rotativos[entry.RotativoID]; ok {
		r.Status = rotativoStatus
	}
	m.removeLocked(entry.ID)
	return nil
}

func (m memQueue) Promote(_ context.Context, w model.PromotionWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasLocked(w.Entry.ID) {
		return abortErr(model.AbortEntryGone)
	}
	if m.countApprovedLocked(w.Entry.EventID) >= w.Cupo {
		return abortErr(model.AbortCupoLleno)
	}
	if r, ok := m.rotativos[w.Entry.RotativoID]; ok {
		r.Status = w.Status
		if w.Motivo != nil {
			r.Motivo = w.Motivo
		}
	}
	m.removeLocked(w.Entry.ID)
	return nil
}

func (m memQueue) PurgeSeason(_ context.Context, seasonID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	n := 0
	for _, e := range m.entries {
		if e.SeasonID == seasonID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return n, nil
}

// ----- balances -----

type memBalances struct{ *memStore }

func balanceStoreKey(userID, seasonID string) string { return userID + "|" + seasonID }

func copyBalance(b *model.UserSeasonBalance) *model.UserSeasonBalance {
	c := *b
	c.FinesDeSemanaMes = map[string]int{}
	for k, v := range b.FinesDeSemanaMes {
		c.FinesDeSemanaMes[k] = v
	}
	return &c
}

func (m memBalances) Get(_ context.Context, userID, seasonID string) (*model.UserSeasonBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[balanceStoreKey(userID, seasonID)]
	if !ok {
		return nil, nil
	}
	return copyBalance(b), nil
}

func (m memBalances) Create(_ context.Context, balance *model.UserSeasonBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := balanceStoreKey(balance.UserID, balance.SeasonID)
	if _, ok := m.balances[key]; ok {
		return database.ErrDuplicate
	}
	balance.ID = m.nextID("user_season_balance")
	m.balances[key] = copyBalance(balance)
	return nil
}

func (m memBalances) ApplyDelta(_ context.Context, userID, seasonID string, d model.BalanceDelta) (*model.UserSeasonBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[balanceStoreKey(userID, seasonID)]
	if !ok {
		return nil, nil
	}
	b.RotativosTomados = max(0, b.RotativosTomados+d.Tomados)
	b.RotativosObligatorios = max(0, b.RotativosObligatorios+d.Obligatorios)
	if d.WeekendMonth != "" && d.Weekends != 0 {
		b.FinesDeSemanaMes[d.WeekendMonth] = max(0, b.FinesDeSemanaMes[d.WeekendMonth]+d.Weekends)
	}
	if d.BloqueUsado != nil {
		b.BloqueUsado = *d.BloqueUsado
	}
	return copyBalance(b), nil
}

func (m memBalances) Replace(_ context.Context, balance *model.UserSeasonBalance) (*model.UserSeasonBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[balanceStoreKey(balance.UserID, balance.SeasonID)]
	if !ok {
		return nil, nil
	}
	b.RotativosTomados = balance.RotativosTomados
	b.RotativosObligatorios = balance.RotativosObligatorios
	b.MaxProyectado = balance.MaxProyectado
	b.BloqueUsado = balance.BloqueUsado
	b.FinesDeSemanaMes = map[string]int{}
	for k, v := range balance.FinesDeSemanaMes {
		b.FinesDeSemanaMes[k] = v
	}
	return copyBalance(b), nil
}

func (m memBalances) SetManualMax(_ context.Context, userID, seasonID string, manualMax *int) (*model.UserSeasonBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[balanceStoreKey(userID, seasonID)]
	if !ok {
		return nil, nil
	}
	b.MaxAjustadoManual = manualMax
	return copyBalance(b), nil
}

func (m memBalances) ListBySeason(_ context.Context, seasonID string) ([]*model.UserSeasonBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.UserSeasonBalance
	for _, b := range m.balances {
		if b.SeasonID == seasonID {
			out = append(out, copyBalance(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m memBalances) GroupAverage(_ context.Context, seasonID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total, n := 0, 0
	for _, b := range m.balances {
		if b.SeasonID == seasonID {
			total += b.RotativosTomados
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return float64(total) / float64(n), nil
}

// ----- members -----

type memMembers struct{ *memStore }

func (m memMembers) GetByUserID(_ context.Context, userID string) (*model.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[userID]
	if !ok {
		return nil, nil
	}
	c := *member
	return &c, nil
}

func (m memMembers) CountActive(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, member := range m.members {
		if member.Active {
			n++
		}
	}
	return n, nil
}

// ============================================================================
// Side effect recorder
// ============================================================================

type sentNotification struct {
	to      string
	kind    string
	message string
}

// recorder implements Notifier, Auditor and Metrics
type recorder struct {
	mu            sync.Mutex
	notifications []sentNotification
	audits        []string
	promotions    []model.PromotionOutcome
	requests      []string
	balanceOps    []string
	failNotify    bool
	failAudit     bool
}

func (r *recorder) NotifyUser(_ context.Context, userID, notificationType, message string, _ map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, sentNotification{to: userID, kind: notificationType, message: message})
	if r.failNotify {
		return errors.New("push transport down")
	}
	return nil
}

func (r *recorder) NotifyAdmins(_ context.Context, notificationType, message string, _ map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, sentNotification{to: "admins", kind: notificationType, message: message})
	if r.failNotify {
		return errors.New("push transport down")
	}
	return nil
}

func (r *recorder) RecordAuditEvent(_ context.Context, action, _, _, _ string, _ map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, action)
	if r.failAudit {
		return errors.New("audit store down")
	}
	return nil
}

func (r *recorder) ObserveRequest(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, status)
}

func (r *recorder) ObservePromotion(outcome model.PromotionOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promotions = append(r.promotions, outcome)
}

func (r *recorder) ObserveQueueChange(string, int) {}

func (r *recorder) ObserveBalanceChange(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balanceOps = append(r.balanceOps, op)
}

// kinds returns the notification types sent to recipient, in order
func (r *recorder) kinds(recipient string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notifications {
		if n.to == recipient {
			out = append(out, n.kind)
		}
	}
	return out
}

func (r *recorder) audited(action string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.audits {
		if a == action {
			return true
		}
	}
	return false
}

// ============================================================================
// Harness
// ============================================================================

// testNow is a Sunday; events default to the following Tuesday evening.
var testNow = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

const testTitle = "title:aida"

// typeCapacities is the configured capacity per event type
type typeCapacities map[string]int

func (c typeCapacities) CupoForEventType(_ context.Context, eventType string) (int, bool, error) {
	cupo, ok := c[eventType]
	return cupo, ok, nil
}

// harness wires the real services, engine and catalog over the in-memory store
type harness struct {
	store     *memStore
	fx        *recorder
	caps      typeCapacities
	engine    *rules.Engine
	contexts  *ContextBuilder
	balances  *BalanceService
	queue     *WaitingListService
	rotativos *RotativoService
	season    *model.Season
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := newMemStore()
	store.extraCapacity = 200
	season := &model.Season{
		ID:          "season:2026",
		Name:        "Temporada 2026",
		StartDate:   time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC),
		WorkingDays: 220,
		Active:      true,
	}
	store.seasons[season.ID] = season

	fx := &recorder{}
	locks := NewKeyedLock()
	events := memEvents{store}
	caps := typeCapacities{}

	engine := rules.NewEngine(rules.EngineConfig{
		Catalog: rules.DefaultCatalog(rules.Deps{
			Capacities:  caps,
			Blocks:      events,
			WaitingList: memQueue{store},
			Events:      events,
		}),
	})
	balances := NewBalanceService(BalanceServiceConfig{
		BalanceRepo:  memBalances{store},
		EventRepo:    events,
		RotativoRepo: memRotativos{store},
		MemberRepo:   memMembers{store},
		Locks:        locks,
		Auditor:      fx,
		Metrics:      fx,
	})
	contexts := NewContextBuilder(ContextBuilderConfig{
		EventRepo:    events,
		RotativoRepo: memRotativos{store},
		QueueRepo:    memQueue{store},
		MemberRepo:   memMembers{store},
		Balances:     balances,
		Capacities:   caps,
		Clock:        func() time.Time { return testNow },
	})
	queue := NewWaitingListService(WaitingListServiceConfig{
		QueueRepo:    memQueue{store},
		RotativoRepo: memRotativos{store},
		Contexts:     contexts,
		Validator:    engine,
		Balances:     balances,
		Locks:        locks,
		Notifier:     fx,
		Auditor:      fx,
		Metrics:      fx,
	})
	rotativos := NewRotativoService(RotativoServiceConfig{
		RotativoRepo: memRotativos{store},
		EventRepo:    events,
		Contexts:     contexts,
		Validator:    engine,
		Queue:        queue,
		Balances:     balances,
		Locks:        locks,
		Notifier:     fx,
		Auditor:      fx,
		Metrics:      fx,
	})

	return &harness{
		store:     store,
		fx:        fx,
		caps:      caps,
		engine:    engine,
		contexts:  contexts,
		balances:  balances,
		queue:     queue,
		rotativos: rotativos,
		season:    season,
	}
}

// addEvent schedules an event of the test title with its own capacity
func (h *harness) addEvent(eventType string, date time.Time, cupo int) *model.Event {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	title := testTitle
	e := &model.Event{
		ID:           h.store.nextID("event"),
		SeasonID:     h.season.ID,
		TitleID:      &title,
		Type:         eventType,
		Date:         date,
		CupoOverride: &cupo,
	}
	h.store.events[e.ID] = e
	c := *e
	return &c
}

// addTitleEvent schedules an event that takes its capacity from the title
// default or the configured type capacity
func (h *harness) addTitleEvent(eventType string, date time.Time, titleDefault int) *model.Event {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	title := testTitle
	e := &model.Event{
		ID:               h.store.nextID("event"),
		SeasonID:         h.season.ID,
		TitleID:          &title,
		Type:             eventType,
		Date:             date,
		TitleCupoDefault: titleDefault,
	}
	h.store.events[e.ID] = e
	c := *e
	return &c
}

// rehearsal schedules a Tuesday rehearsal after testNow, one week after the
// previous event so no two rehearsals share a day
func (h *harness) rehearsal(cupo int) *model.Event {
	h.store.mu.Lock()
	weeks := len(h.store.events)
	h.store.mu.Unlock()
	date := time.Date(2026, time.March, 10, 19, 0, 0, 0, time.UTC).AddDate(0, 0, 7*weeks)
	return h.addEvent(model.EventTypeEnsayo, date, cupo)
}

func (h *harness) addBlock() *model.Block {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	b := &model.Block{
		ID:       h.store.nextID("block"),
		SeasonID: h.season.ID,
		TitleID:  testTitle,
		Name:     "Bloque Aida",
		Status:   model.BlockStatusDisponible,
	}
	h.store.blocks[b.ID] = b
	c := *b
	return &c
}

// addMembers adds n active members and returns their user ids
func (h *harness) addMembers(n int) []string {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := h.store.nextID("user")
		h.store.members[id] = &model.Member{ID: h.store.nextID("member"), UserID: id, Name: id, Active: true}
		ids = append(ids, id)
	}
	return ids
}

// setBalance stores a balance row for the member
func (h *harness) setBalance(userID string, tomados int, manualMax *int) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.balances[balanceStoreKey(userID, h.season.ID)] = &model.UserSeasonBalance{
		ID:                h.store.nextID("user_season_balance"),
		UserID:            userID,
		SeasonID:          h.season.ID,
		RotativosTomados:  tomados,
		MaxProyectado:     20,
		MaxAjustadoManual: manualMax,
		FinesDeSemanaMes:  map[string]int{},
	}
}

func (h *harness) request(t *testing.T, userID string, event *model.Event) *model.RequestOutcome {
	t.Helper()
	out, err := h.rotativos.Request(context.Background(), &model.RotativoRequest{UserID: userID, EventID: event.ID})
	if err != nil {
		t.Fatalf("request for %s failed: %v", userID, err)
	}
	return out
}

func (h *harness) rotativo(id string) *model.Rotativo {
	r, _ := memRotativos{h.store}.Get(context.Background(), id)
	return r
}

func (h *harness) balance(userID string) *model.UserSeasonBalance {
	b, _ := memBalances{h.store}.Get(context.Background(), userID, h.season.ID)
	return b
}

func (h *harness) positions(eventID string) map[string]int {
	entries, _ := memQueue{h.store}.List(context.Background(), eventID)
	out := map[string]int{}
	for _, e := range entries {
		out[e.UserID] = e.Position
	}
	return out
}

func intPtr(v int) *int { return &v }

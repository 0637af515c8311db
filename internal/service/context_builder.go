package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forgo/rotativos/api/internal/model"
	"github.com/forgo/rotativos/api/internal/rules"
)

// ContextEventRepository reads the scheduling records a validation needs
type ContextEventRepository interface {
	GetEvent(ctx context.Context, eventID string) (*model.Event, error)
	GetSeason(ctx context.Context, seasonID string) (*model.Season, error)
	GetBlock(ctx context.Context, blockID string) (*model.Block, error)
	ListTitleEvents(ctx context.Context, titleID string) ([]*model.Event, error)
}

// ContextRotativoRepository counts the seats taken on an event
type ContextRotativoRepository interface {
	CountApproved(ctx context.Context, eventID string) (int, error)
}

// ContextQueueRepository counts the queue of an event
type ContextQueueRepository interface {
	Count(ctx context.Context, eventID string) (int, error)
}

// MemberRepository reads the roster
type MemberRepository interface {
	GetByUserID(ctx context.Context, userID string) (*model.Member, error)
	CountActive(ctx context.Context) (int, error)
}

// BalanceReader reads balances and their season aggregate
type BalanceReader interface {
	GetBalance(ctx context.Context, userID, seasonID string) (*model.UserSeasonBalance, error)
	GroupAverage(ctx context.Context, seasonID string) (float64, error)
}

// ValidationInput identifies the request being validated
type ValidationInput struct {
	UserID      string
	EventID     string
	RequestType string
	BlockID     *string
}

// Snapshot is a built validation context with the records it was built from
type Snapshot struct {
	Context *model.ValidationContext
	Event   *model.Event
	Season  *model.Season
	Member  *model.Member

	// Block and BlockEvents are set for block requests
	Block       *model.Block
	BlockEvents []*model.Event
}

// ContextBuilder assembles validation contexts
type ContextBuilder struct {
	events     ContextEventRepository
	rotativos  ContextRotativoRepository
	queue      ContextQueueRepository
	members    MemberRepository
	balances   BalanceReader
	capacities rules.CapacityProvider
	now        func() time.Time
}

// ContextBuilderConfig holds the context builder collaborators
type ContextBuilderConfig struct {
	EventRepo    ContextEventRepository
	RotativoRepo ContextRotativoRepository
	QueueRepo    ContextQueueRepository
	MemberRepo   MemberRepository
	Balances     BalanceReader
	Capacities   rules.CapacityProvider // the engine's provider; nil uses the event capacity
	Clock        func() time.Time       // defaults to time.Now
}

// NewContextBuilder creates a new context builder
func NewContextBuilder(cfg ContextBuilderConfig) *ContextBuilder {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &ContextBuilder{
		events:     cfg.EventRepo,
		rotativos:  cfg.RotativoRepo,
		queue:      cfg.QueueRepo,
		members:    cfg.MemberRepo,
		balances:   cfg.Balances,
		capacities: cfg.Capacities,
		now:        now,
	}
}

// Build loads everything the rules decide on into a fresh snapshot
func (b *ContextBuilder) Build(ctx context.Context, in ValidationInput) (*Snapshot, error) {
	event, err := b.events.GetEvent(ctx, in.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	snap := &Snapshot{Event: event}
	requestType := in.RequestType
	if requestType == "" {
		requestType = model.RequestTypeVoluntario
	}

	if in.BlockID != nil && *in.BlockID != "" {
		if err := b.loadBlock(ctx, snap, *in.BlockID); err != nil {
			return nil, err
		}
	}

	var (
		season   *model.Season
		member   *model.Member
		balance  *model.UserSeasonBalance
		approved int
		queued   int
		roster   int
		average  float64
		cupo     int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if season, err = b.events.GetSeason(gctx, event.SeasonID); err != nil {
			return fmt.Errorf("failed to get season: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if member, err = b.members.GetByUserID(gctx, in.UserID); err != nil {
			return fmt.Errorf("failed to get member: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if balance, err = b.balances.GetBalance(gctx, in.UserID, event.SeasonID); err != nil {
			return fmt.Errorf("failed to get balance: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if approved, err = b.rotativos.CountApproved(gctx, event.ID); err != nil {
			return fmt.Errorf("failed to count approved rotativos: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if queued, err = b.queue.Count(gctx, event.ID); err != nil {
			return fmt.Errorf("failed to count waiting list: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if roster, err = b.members.CountActive(gctx); err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if average, err = b.balances.GroupAverage(gctx, event.SeasonID); err != nil {
			return fmt.Errorf("failed to get group average: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if cupo, err = b.resolveCupo(gctx, event); err != nil {
			return fmt.Errorf("failed to resolve capacity: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if season == nil {
		return nil, ErrSeasonNotFound
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}

	vc := &model.ValidationContext{
		UserID:         in.UserID,
		EventID:        event.ID,
		SeasonID:       event.SeasonID,
		RequestType:    requestType,
		RequestDate:    b.now(),
		EventDate:      event.Date,
		EventType:      event.Type,
		IsWeekend:      event.IsWeekend(),
		RequestedCount: 1,
		CupoOverride:   event.CupoOverride,
		UserBalance:    snapshotOf(balance, member),
		EventData: model.EventData{
			CurrentApproved:  approved,
			CupoTotal:        cupo,
			WaitingListCount: queued,
		},
		SeasonData: model.SeasonData{
			WorkingDays:  season.WorkingDays,
			MemberCount:  roster,
			GroupAverage: average,
		},
	}
	if event.TitleID != nil {
		vc.TitleID = *event.TitleID
	}
	if snap.Block != nil {
		vc.IsBlock = true
		vc.BlockID = snap.Block.ID
		vc.RequestedCount = len(snap.BlockEvents)
	}

	snap.Context = vc
	snap.Season = season
	snap.Member = member
	return snap, nil
}

// resolveCupo returns the capacity every rule and promotion compares against:
// the event override, then the configured capacity of the event type, then
// the title default.
func (b *ContextBuilder) resolveCupo(ctx context.Context, event *model.Event) (int, error) {
	if event.CupoOverride != nil || b.capacities == nil || event.Type == "" {
		return event.EffectiveCupo(), nil
	}
	cupo, ok, err := b.capacities.CupoForEventType(ctx, event.Type)
	if err != nil {
		return 0, err
	}
	if !ok {
		return event.EffectiveCupo(), nil
	}
	return cupo, nil
}

// loadBlock resolves the block of a block request. The block must cover the
// requested event's title.
func (b *ContextBuilder) loadBlock(ctx context.Context, snap *Snapshot, blockID string) error {
	block, err := b.events.GetBlock(ctx, blockID)
	if err != nil {
		return fmt.Errorf("failed to get block: %w", err)
	}
	if block == nil {
		return ErrBlockNotFound
	}
	if snap.Event.TitleID == nil || *snap.Event.TitleID != block.TitleID {
		return ErrBlockMismatch
	}

	events, err := b.events.ListTitleEvents(ctx, block.TitleID)
	if err != nil {
		return fmt.Errorf("failed to list block events: %w", err)
	}
	snap.Block = block
	snap.BlockEvents = events
	return nil
}

func snapshotOf(balance *model.UserSeasonBalance, member *model.Member) model.BalanceSnapshot {
	s := model.BalanceSnapshot{FinesDeSemanaMes: map[string]int{}}
	if balance != nil {
		s.RotativosTomados = balance.RotativosTomados
		s.RotativosObligatorios = balance.RotativosObligatorios
		s.RotativosPorLicencia = balance.RotativosPorLicencia
		s.MaxProyectado = balance.MaxProyectado
		s.MaxAjustadoManual = balance.MaxAjustadoManual
		s.BloqueUsado = balance.BloqueUsado
		for k, v := range balance.FinesDeSemanaMes {
			s.FinesDeSemanaMes[k] = v
		}
	}
	if member != nil {
		s.FechaIngreso = member.FechaIngreso
	}
	return s
}

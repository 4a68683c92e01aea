package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"AuctionLedger/internal/event"
	"AuctionLedger/internal/external"
	"AuctionLedger/internal/ledger"
	fpmath "AuctionLedger/internal/math"
	"AuctionLedger/internal/observability"
	"AuctionLedger/internal/schedule"
	"AuctionLedger/internal/state"

	"github.com/google/uuid"
)

// AuctionEngine is the single-threaded event processor
type AuctionEngine struct {
	sequence          int64
	hasher            *StateHasher
	params            *state.AuctionParams
	schedule          *schedule.Table
	balanceTracker    *ledger.BalanceTracker
	journalGen        *ledger.JournalGenerator
	validator         *ledger.InvariantValidator
	registry          *state.ParticipantRegistry
	entitlements      *state.EntitlementBook
	cycles            *state.CycleTracker
	ratios            *state.RatioCache
	daily             *state.DailyAccumulator
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

type CoreOutput struct {
	Envelope   *event.EventEnvelope
	Batch      *ledger.Batch
	StateDelta []byte

	// Copy of the settlement record touched by this event, for
	// projection consumption. Nil for events outside a cycle.
	CycleRecord *state.CycleRecord

	// Typed event for the persistence bridge to marshal. Nil for
	// derived events, whose payload is already on the envelope.
	Event event.Event
}

func NewAuctionEngine(
	params *state.AuctionParams,
	startSequence int64,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) (*AuctionEngine, error) {
	if err := state.ValidateAuctionParams(params); err != nil {
		return nil, fmt.Errorf("invalid auction params: %w", err)
	}

	balanceTracker := ledger.NewBalanceTracker()
	validator := ledger.NewInvariantValidator(balanceTracker)
	journalGen := ledger.NewJournalGenerator(startSequence, balanceTracker)

	// Initialize with capacity of 1M entries (configurable)
	idempotencyChecker := NewIdempotencyChecker(1_000_000, dbChecker, metrics)
	sequenceValidator := NewSequenceValidator(metrics)

	return &AuctionEngine{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		params:            params,
		schedule:          schedule.NewTable(params.DayLengthUs, params.ReverseEvery),
		balanceTracker:    balanceTracker,
		journalGen:        journalGen,
		validator:         validator,
		registry:          state.NewParticipantRegistry(params.ParticipantCap),
		entitlements:      state.NewEntitlementBook(params.EntitlementExpiry),
		cycles:            state.NewCycleTracker(params.MaxCyclesPerToken),
		ratios:            state.NewRatioCache(),
		daily:             state.NewDailyAccumulator(params.DayLengthUs),
		idempotency:       idempotencyChecker,
		sequenceValidator: sequenceValidator,
		metrics:           metrics,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}, nil
}

// ProcessEvent is the main processing pipeline
func (c *AuctionEngine) ProcessEvent(evt event.Event) error {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := c.idempotency.IsDuplicate(eventType, idempotencyKey)

	// Step 2: Sequence validation
	partition := c.getPartition(evt)
	sourceSequence := evt.SourceSequence()

	// Ratio updates tolerate gaps; rollover ticks are generated in-process
	// and carry no feed counter at all.
	switch e := evt.(type) {
	case *event.PoolRatioUpdate:
		if err := c.sequenceValidator.ValidateRatioSequence(e.AuctionToken, e.RatioSequence); err != nil {
			return err
		}
	case *event.DayRolloverTick:
		// Ticks are generated in-process (cron or operator), not by an
		// upstream feed, so they carry no source counter to validate.
	default:
		// Regular sequence validation
		if err := c.sequenceValidator.ValidateSequence(partition, sourceSequence, idempotencyKey, isDuplicate); err != nil {
			return fmt.Errorf("sequence validation failed: %w", err)
		}
	}

	// If duplicate, skip processing
	if isDuplicate {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Lazy day rollover. The first event observed past a day
	// boundary closes the prior day and emits a derived DayClosed event
	// BEFORE the triggering event is dispatched.
	eventTime := c.getEventTimestamp(evt)
	c.rollDays(eventTime)

	// Step 4: Event dispatch - get the batch
	batch, err := c.dispatchEvent(evt)
	if err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}

	// Skip validation and application for empty batches (state-only
	// events like ScheduleSet, PoolRatioUpdate, AuctionClaim produce
	// no journals but still need an envelope in the event log).
	if len(batch.Journals) > 0 {
		// Validate batch balance
		if err := c.validator.ValidateBatchBalance(batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}

		// Apply batch to balances
		if err := c.balanceTracker.ApplyBatch(batch); err != nil {
			return fmt.Errorf("apply batch failed: %w", err)
		}

		if c.metrics != nil {
			for _, j := range batch.Journals {
				c.metrics.CoreJournals.WithLabelValues(j.JournalType.String()).Inc()
			}
		}
	}

	// Compute state digest and hash
	stateDigest := c.computeStateDigest(batch)
	prevHash := c.hasher.GetPrevHash()
	stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)

	// Create envelope
	envelope := &event.EventEnvelope{
		Sequence:       c.sequence,
		IdempotencyKey: idempotencyKey,
		EventType:      evt.EventType(),
		Token:          evt.Token(),
		Timestamp:      eventTime,
		SourceSequence: sourceSequence,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	output := CoreOutput{
		Envelope:    envelope,
		Batch:       batch,
		StateDelta:  stateDigest,
		CycleRecord: c.touchedCycleRecord(evt),
		Event:       evt,
	}

	c.sequence++

	// Step 5: Post-checks
	if err := c.postCheckInvariants(evt); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 6: Emit output.
	// Persist channel uses BLOCKING send (backpressure), projection
	// channel uses NON-BLOCKING send with silent drop.
	c.sendOutput(output)

	// Step 7: Mark as processed (add to LRU)
	c.idempotency.MarkProcessed(eventType, idempotencyKey)

	// Record metrics
	if c.metrics != nil {
		c.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
		c.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
		c.metrics.DedupLRUSize.Set(float64(c.idempotency.LRUSize()))
		c.metrics.DedupLRUEvictions.Set(float64(c.idempotency.LRUEvictions()))
	}

	return nil
}

// sendOutput delivers an output to both downstream channels. The persist
// send blocks when the channel is full so no event escapes the log; the
// projection send drops and relies on a later rebuild to catch up.
func (c *AuctionEngine) sendOutput(output CoreOutput) {
	select {
	case c.persistChan <- output:
	default:
		if c.metrics != nil {
			c.metrics.PersistBackpressure.Inc()
		}
		c.persistChan <- output
	}

	select {
	case c.projectionChan <- output:
	default:
		if c.metrics != nil {
			c.metrics.ProjectionDrops.WithLabelValues("main").Inc()
		}
	}
}

// getPartition determines partition key for sequence validation
func (c *AuctionEngine) getPartition(evt event.Event) string {
	if token := evt.Token(); token != nil {
		return fmt.Sprintf("token:%s", *token)
	}
	return "global"
}

// getEventTimestamp extracts the versioned timestamp from an event.
// The core MUST NOT call time.Now(). All timestamps are versioned inputs.
func (c *AuctionEngine) getEventTimestamp(evt event.Event) time.Time {
	switch e := evt.(type) {
	case *event.ScheduleSet:
		return e.Timestamp
	case *event.VaultDeposit:
		return e.Timestamp
	case *event.ParticipantRegistration:
		return e.Timestamp
	case *event.EntitlementMint:
		return e.Timestamp
	case *event.AuctionClaim:
		return e.Timestamp
	case *event.AuctionBurn:
		return e.Timestamp
	case *event.AuctionSwap:
		return e.Timestamp
	case *event.ReverseSwap:
		return e.Timestamp
	case *event.ReverseBurn:
		return e.Timestamp
	case *event.PoolRatioUpdate:
		return e.Timestamp
	case *event.DayRolloverTick:
		return e.Timestamp
	default:
		panic(fmt.Sprintf("FATAL: getEventTimestamp called with unhandled event type %T — deterministic core cannot use wall-clock time", evt))
	}
}

// rollDays closes out any days the event clock has moved past and emits
// a derived DayClosed event per closed day. Derived events get their
// own sequence and extend the state hash chain like ingested events.
func (c *AuctionEngine) rollDays(eventTime time.Time) {
	closed := c.daily.Roll(eventTime.UnixMicro())

	for _, stats := range closed {
		daySeq := c.sequence
		c.sequence++

		payload, err := json.Marshal(stats)
		if err != nil {
			panic(fmt.Sprintf("FATAL: day stats marshal: %v", err))
		}

		stateDigest := c.computeStateDigest(nil)
		prevHash := c.hasher.GetPrevHash()
		stateHash := c.hasher.ComputeHash(daySeq, stateDigest)

		token := stats.Token
		output := CoreOutput{
			Envelope: &event.EventEnvelope{
				Sequence:       daySeq,
				IdempotencyKey: fmt.Sprintf("day_closed:%d", stats.DayIndex),
				EventType:      event.EventTypeDayClosed,
				Token:          &token,
				Timestamp:      eventTime,
				Payload:        payload,
				StateHash:      stateHash,
				PrevHash:       prevHash,
			},
			StateDelta: stateDigest,
		}

		// Persist send blocks so the closed day reaches the event log
		c.sendOutput(output)
	}
}

// computeStateDigest creates canonical bytes for the state hash
func (c *AuctionEngine) computeStateDigest(batch *ledger.Batch) []byte {
	// Collect all affected accounts
	affectedAccounts := make(map[ledger.AccountKey]bool)

	if batch != nil {
		for _, j := range batch.Journals {
			affectedAccounts[j.DebitAccount] = true
			affectedAccounts[j.CreditAccount] = true
		}
	}

	// Sort accounts deterministically
	accounts := make([]ledger.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}

	// Sort by AccountPath (deterministic string ordering)
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	// Build digest
	digest := make([]byte, 0, len(accounts)*64)

	for _, key := range accounts {
		balance := c.balanceTracker.GetBalance(key)

		// Append account path
		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)

		// Append balance (8 bytes LE)
		digest = appendInt64LE(digest, balance)
	}

	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// postCheckInvariants validates invariants after batch application
func (c *AuctionEngine) postCheckInvariants(evt event.Event) error {
	switch e := evt.(type) {
	case *event.AuctionBurn:
		if err := c.validator.ValidateUserPendingNonNegative(e.UserID); err != nil {
			return fmt.Errorf("post-check pending: %w", err)
		}
		if err := c.validator.ValidateVaultNonNegative(ledger.StateAssetID); err != nil {
			return fmt.Errorf("post-check vault: %w", err)
		}

	case *event.AuctionSwap:
		if err := c.validator.ValidateUserPendingNonNegative(e.UserID); err != nil {
			return fmt.Errorf("post-check pending: %w", err)
		}

	case *event.ReverseSwap:
		if err := c.validator.ValidateVaultNonNegative(ledger.StateAssetID); err != nil {
			return fmt.Errorf("post-check vault: %w", err)
		}

	case *event.ReverseBurn:
		if err := c.validator.ValidateUserPendingNonNegative(e.UserID); err != nil {
			return fmt.Errorf("post-check reverse pending: %w", err)
		}
		if assetID, ok := ledger.GetAssetID(e.AuctionToken); ok {
			if err := c.validator.ValidateVaultNonNegative(assetID); err != nil {
				return fmt.Errorf("post-check token vault: %w", err)
			}
		}
	}

	// Periodic global zero-sum check: the sum of all accounts per asset
	// must be exactly zero after every batch.
	if c.sequence > 0 && c.sequence%1000 == 0 {
		totals := c.balanceTracker.ComputeGlobalBalance()
		for assetID, total := range totals {
			if total != 0 {
				return fmt.Errorf("post-check zero-sum: global balance non-zero for asset %d: %d (at seq %d)",
					assetID, total, c.sequence)
			}
		}
	}

	return nil
}

// requireMode checks that token runs in the wanted mode at eventUs and
// returns the 1-based cycle number (appearance count).
func (c *AuctionEngine) requireMode(token string, eventUs int64, want schedule.Mode) (int64, error) {
	if !c.schedule.IsSet() {
		return 0, schedule.ErrScheduleNotSet
	}
	if _, err := c.schedule.DayIndex(eventUs); err != nil {
		return 0, err
	}

	mode := c.schedule.ModeFor(token, eventUs)
	if mode != want {
		return 0, fmt.Errorf("%w: %s runs %s here, step needs %s",
			schedule.ErrWrongMode, token, mode, want)
	}

	return c.schedule.AppearanceCount(token, eventUs), nil
}

// touchedCycleRecord returns a copy of the cycle record the event just
// mutated. The copy keeps the projection goroutine off live core state.
func (c *AuctionEngine) touchedCycleRecord(evt event.Event) *state.CycleRecord {
	var userID uuid.UUID
	var token string

	switch e := evt.(type) {
	case *event.AuctionClaim:
		userID, token = e.UserID, e.AuctionToken
	case *event.AuctionBurn:
		userID, token = e.UserID, e.AuctionToken
	case *event.AuctionSwap:
		userID, token = e.UserID, e.AuctionToken
	case *event.ReverseSwap:
		userID, token = e.UserID, e.AuctionToken
	case *event.ReverseBurn:
		userID, token = e.UserID, e.AuctionToken
	default:
		return nil
	}

	eventUs := c.getEventTimestamp(evt).UnixMicro()
	cycle := c.schedule.AppearanceCount(token, eventUs)
	if cycle == 0 {
		return nil
	}
	rec, ok := c.cycles.Get(state.CycleKey{UserID: userID, Token: token, Cycle: cycle})
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// emptyBatch builds a journal-free batch so state-only events still
// produce an envelope in the event log.
func (c *AuctionEngine) emptyBatch(eventRef string, timestampUs int64) *ledger.Batch {
	return &ledger.Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  c.sequence,
		Timestamp: timestampUs,
		Journals:  []ledger.Journal{},
	}
}

// handleScheduleSet performs the one-shot Unset→Set transition and
// registers an asset per scheduled token.
func (c *AuctionEngine) handleScheduleSet(evt *event.ScheduleSet) (*ledger.Batch, error) {
	if int64(len(evt.Tokens)) > c.params.MaxTokens {
		return nil, fmt.Errorf("schedule has %d tokens, max %d", len(evt.Tokens), c.params.MaxTokens)
	}

	nowUs := evt.Timestamp.UnixMicro()
	if err := c.schedule.Set(evt.Tokens, evt.StartUs, evt.LimitDays, nowUs, c.params.SupportedTokens); err != nil {
		return nil, err
	}

	// Asset IDs are assigned in rotation order so replay and restore
	// produce identical IDs.
	for _, token := range evt.Tokens {
		ledger.RegisterAsset(token)
	}

	c.daily.Start(evt.StartUs)

	return c.emptyBatch(evt.IdempotencyKey(), nowUs), nil
}

func (c *AuctionEngine) handleVaultDeposit(evt *event.VaultDeposit) (*ledger.Batch, error) {
	if evt.Amount <= 0 {
		return nil, fmt.Errorf("%w: deposit amount %d", fpmath.ErrInvalidAmount, evt.Amount)
	}
	return c.journalGen.GenerateVaultDeposit(evt)
}

func (c *AuctionEngine) handleRegistration(evt *event.ParticipantRegistration) (*ledger.Batch, error) {
	_, err := c.registry.Register(evt.UserID, evt.Timestamp.UnixMicro(), evt.Sequence)
	if err != nil {
		return nil, err
	}
	return c.emptyBatch(evt.IdempotencyKey(), evt.Timestamp.UnixMicro()), nil
}

func (c *AuctionEngine) handleEntitlementMint(evt *event.EntitlementMint) (*ledger.Batch, error) {
	if !c.registry.IsRegistered(evt.UserID) {
		return nil, fmt.Errorf("%w: mint for %s", state.ErrNotRegistered, evt.UserID)
	}

	if err := c.entitlements.Mint(evt.UserID, evt.Units, evt.Timestamp.UnixMicro(), evt.Origin); err != nil {
		return nil, err
	}

	return c.emptyBatch(evt.IdempotencyKey(), evt.Timestamp.UnixMicro()), nil
}

// handleAuctionClaim consumes entitlement units against the day's token.
// The token grant itself lands in the participant's external wallet, so
// no journals are generated — the core only tracks the cycle record.
func (c *AuctionEngine) handleAuctionClaim(evt *event.AuctionClaim) (*ledger.Batch, error) {
	if !c.registry.IsRegistered(evt.UserID) {
		return nil, fmt.Errorf("%w: claim by %s", state.ErrNotRegistered, evt.UserID)
	}

	eventUs := evt.Timestamp.UnixMicro()
	cycle, err := c.requireMode(evt.AuctionToken, eventUs, schedule.ModeNormal)
	if err != nil {
		return nil, err
	}

	rec, err := c.cycles.GetOrCreate(state.CycleKey{
		UserID: evt.UserID,
		Token:  evt.AuctionToken,
		Cycle:  cycle,
	})
	if err != nil {
		return nil, err
	}

	if !rec.Step.CanTransitionTo(state.StepClaimed) {
		return nil, fmt.Errorf("%w: %s -> Claimed for %s cycle %d",
			state.ErrStepPrerequisite, rec.Step, rec.Token, rec.Cycle)
	}

	active := c.entitlements.ActiveUnits(evt.UserID, eventUs)
	if err := c.cycles.Consume(rec, evt.Units, active); err != nil {
		return nil, err
	}

	rec.TokensGranted += evt.Units * fpmath.AirdropPerUnit
	if err := rec.Advance(state.StepClaimed); err != nil {
		return nil, err
	}

	c.daily.RecordClaim(evt.UserID, evt.AuctionToken, evt.Units)

	return c.emptyBatch(evt.IdempotencyKey(), eventUs), nil
}

// handleAuctionBurn burns the fixed fraction of the cycle's granted
// tokens and accrues state to the user's pending account at the
// current pool ratio.
func (c *AuctionEngine) handleAuctionBurn(evt *event.AuctionBurn) (*ledger.Batch, error) {
	eventUs := evt.Timestamp.UnixMicro()
	cycle, err := c.requireMode(evt.AuctionToken, eventUs, schedule.ModeNormal)
	if err != nil {
		return nil, err
	}

	key := state.CycleKey{UserID: evt.UserID, Token: evt.AuctionToken, Cycle: cycle}
	rec, ok := c.cycles.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: burn before claim for %s cycle %d",
			state.ErrStepPrerequisite, evt.AuctionToken, cycle)
	}

	if !rec.Step.CanTransitionTo(state.StepBurned) {
		return nil, fmt.Errorf("%w: %s -> Burned for %s cycle %d",
			state.ErrStepPrerequisite, rec.Step, rec.Token, rec.Cycle)
	}

	// Burn target is cumulative over the cycle: re-claims raise the
	// target, and the burn covers whatever is still outstanding.
	target, err := fpmath.NormalBurnAmount(rec.UnitsConsumed)
	if err != nil {
		return nil, err
	}
	burnNow := target - rec.TokensBurned
	if burnNow <= 0 {
		return nil, fmt.Errorf("%w: nothing left to burn for %s cycle %d",
			fpmath.ErrZeroAmount, evt.AuctionToken, cycle)
	}

	ratio, ok := c.ratios.Get(evt.AuctionToken)
	if !ok {
		return nil, fmt.Errorf("%w: no ratio for %s", fpmath.ErrRatioUnavailable, evt.AuctionToken)
	}

	_, fee, net, err := fpmath.NormalStateOutput(burnNow, ratio)
	if err != nil {
		return nil, err
	}

	tokenAssetID, ok := ledger.GetAssetID(evt.AuctionToken)
	if !ok {
		return nil, fmt.Errorf("unknown token asset: %s", evt.AuctionToken)
	}

	batch, err := c.journalGen.GenerateNormalBurn(evt.UserID, evt.BurnID, tokenAssetID, burnNow, net, fee, eventUs)
	if err != nil {
		return nil, err
	}

	rec.TokensBurned += burnNow
	rec.PendingState += net
	rec.FeesPaid += fee
	if err := rec.Advance(state.StepBurned); err != nil {
		return nil, err
	}

	c.daily.RecordBurn(evt.UserID, evt.AuctionToken, burnNow, fee)

	return batch, nil
}

// handleAuctionSwap releases pending state to the router. Amount of 0
// releases the full pending balance.
func (c *AuctionEngine) handleAuctionSwap(evt *event.AuctionSwap) (*ledger.Batch, error) {
	eventUs := evt.Timestamp.UnixMicro()
	cycle, err := c.requireMode(evt.AuctionToken, eventUs, schedule.ModeNormal)
	if err != nil {
		return nil, err
	}

	key := state.CycleKey{UserID: evt.UserID, Token: evt.AuctionToken, Cycle: cycle}
	rec, ok := c.cycles.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: swap before burn for %s cycle %d",
			state.ErrStepPrerequisite, evt.AuctionToken, cycle)
	}

	if !rec.Step.CanTransitionTo(state.StepSwapped) {
		return nil, fmt.Errorf("%w: %s -> Swapped for %s cycle %d",
			state.ErrStepPrerequisite, rec.Step, rec.Token, rec.Cycle)
	}

	amount := evt.Amount
	if amount == 0 {
		amount = rec.PendingState
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: nothing pending for %s cycle %d",
			fpmath.ErrZeroAmount, evt.AuctionToken, cycle)
	}

	batch, err := c.journalGen.GenerateSwapRelease(evt.UserID, evt.SwapID, amount, eventUs)
	if err != nil {
		return nil, err
	}

	rec.PendingState -= amount
	rec.StateReleased += amount
	rec.SwapCount++
	if err := rec.Advance(state.StepSwapped); err != nil {
		return nil, err
	}

	c.daily.RecordRelease(evt.UserID, evt.AuctionToken, amount)

	return batch, nil
}

// handleReverseSwap sells previously earned tokens back into the pool.
// The input is capped by net tokens earned over the lookback window.
func (c *AuctionEngine) handleReverseSwap(evt *event.ReverseSwap) (*ledger.Batch, error) {
	eventUs := evt.Timestamp.UnixMicro()
	cycle, err := c.requireMode(evt.AuctionToken, eventUs, schedule.ModeReverse)
	if err != nil {
		return nil, err
	}

	rec, err := c.cycles.GetOrCreate(state.CycleKey{
		UserID: evt.UserID,
		Token:  evt.AuctionToken,
		Cycle:  cycle,
	})
	if err != nil {
		return nil, err
	}

	if !rec.Step.CanTransitionTo(state.StepReverseSwapped) {
		return nil, fmt.Errorf("%w: %s -> ReverseSwapped for %s cycle %d",
			state.ErrStepPrerequisite, rec.Step, rec.Token, rec.Cycle)
	}

	if evt.TokenIn <= 0 {
		return nil, fmt.Errorf("%w: reverse input %d", fpmath.ErrZeroAmount, evt.TokenIn)
	}

	earned := c.cycles.NetTokensEarned(evt.UserID, evt.AuctionToken, cycle-c.params.ReverseLookback, cycle-1)
	allowed := earned - rec.ReverseTokenIn
	if evt.TokenIn > allowed {
		return nil, fmt.Errorf("%w: reverse input %d exceeds %d earned within lookback",
			state.ErrInsufficientEntitlement, evt.TokenIn, allowed)
	}

	ratio, ok := c.ratios.Get(evt.AuctionToken)
	if !ok {
		return nil, fmt.Errorf("%w: no ratio for %s", fpmath.ErrRatioUnavailable, evt.AuctionToken)
	}

	stateOut, err := fpmath.ReverseStateOutput(evt.TokenIn, ratio)
	if err != nil {
		return nil, err
	}

	tokenAssetID, ok := ledger.GetAssetID(evt.AuctionToken)
	if !ok {
		return nil, fmt.Errorf("unknown token asset: %s", evt.AuctionToken)
	}

	batch, err := c.journalGen.GenerateReverseSwap(evt.UserID, evt.SwapID, tokenAssetID, evt.TokenIn, stateOut, eventUs)
	if err != nil {
		return nil, err
	}

	rec.ReverseTokenIn += evt.TokenIn
	rec.ReversePending += stateOut
	rec.SwapCount++
	if err := rec.Advance(state.StepReverseSwapped); err != nil {
		return nil, err
	}

	c.daily.RecordReverseSwap(evt.UserID, evt.AuctionToken, evt.TokenIn)

	return batch, nil
}

// handleReverseBurn burns the user's full reverse pending state and
// pays the token output. Partial reverse burns do not exist — the
// burn always covers the exact pending balance.
func (c *AuctionEngine) handleReverseBurn(evt *event.ReverseBurn) (*ledger.Batch, error) {
	eventUs := evt.Timestamp.UnixMicro()
	cycle, err := c.requireMode(evt.AuctionToken, eventUs, schedule.ModeReverse)
	if err != nil {
		return nil, err
	}

	key := state.CycleKey{UserID: evt.UserID, Token: evt.AuctionToken, Cycle: cycle}
	rec, ok := c.cycles.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: reverse burn before reverse swap for %s cycle %d",
			state.ErrStepPrerequisite, evt.AuctionToken, cycle)
	}

	if !rec.Step.CanTransitionTo(state.StepReverseBurned) {
		return nil, fmt.Errorf("%w: %s -> ReverseBurned for %s cycle %d",
			state.ErrStepPrerequisite, rec.Step, rec.Token, rec.Cycle)
	}

	stateBurned := fpmath.MinimumReverseBurn(rec.ReversePending)
	if stateBurned <= 0 {
		return nil, fmt.Errorf("%w: no reverse pending for %s cycle %d",
			fpmath.ErrZeroAmount, evt.AuctionToken, cycle)
	}

	ratio, ok := c.ratios.Get(evt.AuctionToken)
	if !ok {
		return nil, fmt.Errorf("%w: no ratio for %s", fpmath.ErrRatioUnavailable, evt.AuctionToken)
	}

	_, fee, net, err := fpmath.ReverseTokenOutput(stateBurned, ratio)
	if err != nil {
		return nil, err
	}

	if net < evt.MinOut {
		return nil, fmt.Errorf("%w: net %d below floor %d", external.ErrSlippageExceeded, net, evt.MinOut)
	}

	tokenAssetID, ok := ledger.GetAssetID(evt.AuctionToken)
	if !ok {
		return nil, fmt.Errorf("unknown token asset: %s", evt.AuctionToken)
	}

	batch, err := c.journalGen.GenerateReverseBurn(evt.UserID, evt.BurnID, tokenAssetID, stateBurned, net, fee, eventUs)
	if err != nil {
		return nil, err
	}

	rec.ReverseStateBurned += stateBurned
	rec.ReversePending = 0
	rec.TokensEarnedBack += net
	rec.FeesPaid += fee
	if err := rec.Advance(state.StepReverseBurned); err != nil {
		return nil, err
	}

	c.daily.RecordReverseBurn(evt.UserID, evt.AuctionToken, stateBurned, net, fee)

	return batch, nil
}

// handlePoolRatioUpdate refreshes the ratio cache. Stale updates are
// silently ignored, so no error surfaces here.
func (c *AuctionEngine) handlePoolRatioUpdate(evt *event.PoolRatioUpdate) (*ledger.Batch, error) {
	if err := c.ratios.Update(evt.AuctionToken, evt.Ratio, evt.RatioSequence, evt.Timestamp.UnixMicro()); err != nil {
		return nil, err
	}
	return c.emptyBatch(evt.IdempotencyKey(), evt.Timestamp.UnixMicro()), nil
}

// handleDayRolloverTick exists so quiet days still close on time. The
// rollover itself already ran in the pipeline before dispatch.
func (c *AuctionEngine) handleDayRolloverTick(evt *event.DayRolloverTick) (*ledger.Batch, error) {
	return c.emptyBatch(evt.IdempotencyKey(), evt.Timestamp.UnixMicro()), nil
}

func (c *AuctionEngine) dispatchEvent(evt event.Event) (*ledger.Batch, error) {
	switch e := evt.(type) {
	case *event.ScheduleSet:
		return c.handleScheduleSet(e)
	case *event.VaultDeposit:
		return c.handleVaultDeposit(e)
	case *event.ParticipantRegistration:
		return c.handleRegistration(e)
	case *event.EntitlementMint:
		return c.handleEntitlementMint(e)
	case *event.AuctionClaim:
		return c.handleAuctionClaim(e)
	case *event.AuctionBurn:
		return c.handleAuctionBurn(e)
	case *event.AuctionSwap:
		return c.handleAuctionSwap(e)
	case *event.ReverseSwap:
		return c.handleReverseSwap(e)
	case *event.ReverseBurn:
		return c.handleReverseBurn(e)
	case *event.PoolRatioUpdate:
		return c.handlePoolRatioUpdate(e)
	case *event.DayRolloverTick:
		return c.handleDayRolloverTick(e)
	default:
		return nil, fmt.Errorf("unknown event type: %T", evt)
	}
}

// --- Snapshot Restore & Startup Methods ---

// SnapshotState holds the serializable in-memory state for restore.
// This mirrors persistence.SnapshotData but uses typed fields.
type SnapshotState struct {
	Sequence          int64
	StateHash         [32]byte
	Balances          map[ledger.AccountKey]int64
	ScheduleTokens    []string
	ScheduleStartUs   int64
	ScheduleLimitDays int64
	ScheduleIsSet     bool
	Registrations     []*state.Registration
	Entitlements      []*state.EntitlementSnapshot
	CycleRecords      []*state.CycleRecord
	Ratios            []*state.RatioSnapshot
	Daily             *state.DailySnapshot
	SequenceState     map[string]int64
	IdempotencyKeys   []string
}

// RestoreFromSnapshot restores the engine's in-memory state. On warm
// restart, the latest snapshot is loaded and then events replayed.
func (c *AuctionEngine) RestoreFromSnapshot(snap *SnapshotState) {
	// Restore sequence
	c.sequence = snap.Sequence + 1 // Next sequence to assign

	// Restore state hash chain
	c.hasher.SetPrevHash(snap.StateHash)

	// Restore balances
	for key, balance := range snap.Balances {
		c.balanceTracker.SetBalance(key, balance)
	}

	// Restore schedule and re-register token assets in rotation order
	// so asset IDs match the original run.
	if snap.ScheduleIsSet {
		c.schedule.Restore(snap.ScheduleTokens, snap.ScheduleStartUs, snap.ScheduleLimitDays)
		for _, token := range snap.ScheduleTokens {
			ledger.RegisterAsset(token)
		}
	}

	c.registry.Restore(snap.Registrations)
	c.entitlements.Restore(snap.Entitlements)
	c.cycles.Restore(snap.CycleRecords)
	c.ratios.Restore(snap.Ratios)
	if snap.Daily != nil {
		c.daily.Restore(snap.Daily)
	}

	// Restore sequence validator state
	for partition, nextSeq := range snap.SequenceState {
		c.sequenceValidator.SetExpectedSequence(partition, nextSeq)
	}

	// Restore journal generator sequence
	c.journalGen.SetSequence(snap.Sequence)
}

// WarmLRU loads recent idempotency keys into the LRU cache to avoid
// cold-path DB lookups for recently processed events.
func (c *AuctionEngine) WarmLRU(keys []string) {
	c.idempotency.lru.WarmFromKeys(keys)
}

// GetSequence returns the current global sequence number.
func (c *AuctionEngine) GetSequence() int64 {
	return c.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (c *AuctionEngine) GetStateHash() [32]byte {
	return c.hasher.GetPrevHash()
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (c *AuctionEngine) CreateSnapshotState() *SnapshotState {
	return &SnapshotState{
		Sequence:          c.sequence - 1, // Last processed sequence
		StateHash:         c.hasher.GetPrevHash(),
		Balances:          c.balanceTracker.Snapshot(),
		ScheduleTokens:    c.schedule.Tokens(),
		ScheduleStartUs:   c.schedule.StartUs(),
		ScheduleLimitDays: c.schedule.LimitDays(),
		ScheduleIsSet:     c.schedule.IsSet(),
		Registrations:     c.registry.Snapshot(),
		Entitlements:      c.entitlements.Snapshot(),
		CycleRecords:      c.cycles.Snapshot(),
		Ratios:            c.ratios.Snapshot(),
		Daily:             c.daily.Snapshot(),
		SequenceState:     c.sequenceValidator.GetAllPartitions(),
		IdempotencyKeys:   c.idempotency.lru.GetAllKeys(),
	}
}

package relations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
)

const (
	ReasonSelfReference     = "self reference"
	ReasonDanglingReference = "dangling reference"
	ReasonOneSidedFriend    = "friendship is one-sided"
	ReasonOneSidedRequest   = "pending request is one-sided"
	ReasonRequestAndFriend  = "pending request alongside friendship"
	ReasonResolvedRequest   = "request was already resolved"
)

// Repair is one set operation on one document. PeerID is set when the repair belongs to a pair
// and is empty for repairs that only concern the user's own document.
type Repair struct {
	UserID string  `json:"user_id"`
	PeerID string  `json:"peer_id,omitempty"`
	Field  d.Field `json:"field"`
	Op     d.Op    `json:"op"`
	Value  string  `json:"value"`
	Reason string  `json:"reason"`
}

func (repair Repair) Mutation() d.Mutation {
	return d.Mutation{{Field: repair.Field, Op: repair.Op, Value: repair.Value}}
}

type Report struct {
	Scanned int      `json:"scanned"`
	Repairs []Repair `json:"repairs"`
	Applied int      `json:"applied"`
}

// Ledger indexes request records by directory.RequestKey.
type Ledger map[string]m.FriendRequest

func (ledger Ledger) lookup(senderID string, receiverID string) *m.FriendRequest {
	request, ok := ledger[d.RequestKey(senderID, receiverID)]
	if !ok {
		return nil
	}
	return &request
}

// Reconciler makes each pair of documents agree again after writes that reached only one of them.
// The more advanced state wins: a friendship on either side beats a pending request, a resolved
// ledger record beats the half of a request it left behind, and otherwise one half of a pending
// request is enough to restore the other half.
//
// Scans only find candidate pairs. Each pair is read again and re-planned inside
// Transactor.RepairPair, so an operation that commits after the scan is never undone.
type Reconciler struct {
	dir    d.Directory
	logger *zap.Logger
}

func NewReconciler(dir d.Directory, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{dir: dir, logger: logger}
}

// RunOnce scans every document.
func (rec *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	users, focus, err := rec.scanAll(ctx)
	if err != nil {
		return Report{}, err
	}
	return rec.apply(ctx, len(users), PlanRepairs(users, nil, focus))
}

// ReconcileUser repairs only the pairs that userID's own document refers to.
func (rec *Reconciler) ReconcileUser(ctx context.Context, userID string) (Report, error) {
	users, err := rec.scanUser(ctx, userID)
	if err != nil {
		return Report{}, err
	}
	return rec.apply(ctx, len(users), PlanRepairs(users, nil, []string{userID}))
}

// Preview reports what RunOnce, or ReconcileUser when userID is set, would repair right now
// without writing anything.
func (rec *Reconciler) Preview(ctx context.Context, userID string) (Report, error) {
	var users map[string]m.User
	var focus []string
	var err error
	if userID == "" {
		users, focus, err = rec.scanAll(ctx)
	} else {
		users, err = rec.scanUser(ctx, userID)
		focus = []string{userID}
	}
	if err != nil {
		return Report{}, err
	}

	report := Report{Scanned: len(users)}
	for _, group := range groupRepairs(PlanRepairs(users, nil, focus)) {
		if group.peerID == "" {
			report.Repairs = append(report.Repairs, group.repairs...)
			continue
		}
		pair, err := readPair(ctx, rec.dir, group.userID, group.peerID)
		if errors.Is(err, d.ErrNotFound) {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("preview %s/%s: %w", group.userID, group.peerID, err)
		}
		report.Repairs = append(report.Repairs, planPair(pair)...)
	}
	return report, nil
}

// Run reconciles every interval until ctx is done.
func (rec *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := rec.RunOnce(ctx)
			if err != nil {
				rec.logger.Error("reconciliation pass failed", zap.Error(err))
				continue
			}
			rec.logger.Info("reconciliation pass finished",
				zap.Int("scanned", report.Scanned), zap.Int("repairs", len(report.Repairs)), zap.Int("applied", report.Applied))
		}
	}
}

func (rec *Reconciler) scanAll(ctx context.Context) (map[string]m.User, []string, error) {
	all, err := rec.dir.Query(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("reconcile: %w", err)
	}

	users := make(map[string]m.User, len(all))
	focus := make([]string, 0, len(all))
	for _, user := range all {
		users[user.ID] = user
		focus = append(focus, user.ID)
	}
	return users, focus, nil
}

func (rec *Reconciler) scanUser(ctx context.Context, userID string) (map[string]m.User, error) {
	self, err := rec.dir.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reconcile %q: %w", userID, err)
	}

	var peerIDs []string
	seen := map[string]bool{userID: true}
	for _, field := range d.RelationshipFields {
		for _, peerID := range *d.FieldValues(&self, field) {
			if !seen[peerID] {
				seen[peerID] = true
				peerIDs = append(peerIDs, peerID)
			}
		}
	}
	peers, err := d.GetMany(ctx, rec.dir, peerIDs)
	if err != nil {
		return nil, fmt.Errorf("reconcile %q: %w", userID, err)
	}

	users := map[string]m.User{userID: self}
	for _, peer := range peers {
		users[peer.ID] = peer
	}
	return users, nil
}

func (rec *Reconciler) apply(ctx context.Context, scanned int, planned []Repair) (Report, error) {
	report := Report{Scanned: scanned}
	var errs []error

	for _, group := range groupRepairs(planned) {
		if group.peerID == "" {
			for _, repair := range group.repairs {
				report.Repairs = append(report.Repairs, repair)
				if err := rec.dir.Update(ctx, repair.UserID, repair.Mutation()); err != nil {
					rec.logFailure(repair, err)
					errs = append(errs, fmt.Errorf("repair %s.%s: %w", repair.UserID, repair.Field, err))
					continue
				}
				rec.logRepair(repair)
				report.Applied++
			}
			continue
		}

		applied, err := rec.repairPair(ctx, group.userID, group.peerID)
		if errors.Is(err, d.ErrNotFound) {
			rec.logger.Debug("pair disappeared before repair", zap.String("user_id", group.userID), zap.String("peer_id", group.peerID))
			continue
		}
		if err != nil {
			for _, repair := range group.repairs {
				rec.logFailure(repair, err)
			}
			report.Repairs = append(report.Repairs, group.repairs...)
			errs = append(errs, fmt.Errorf("repair %s/%s: %w", group.userID, group.peerID, err))
			continue
		}
		for _, repair := range applied {
			rec.logRepair(repair)
		}
		report.Repairs = append(report.Repairs, applied...)
		report.Applied += len(applied)
	}
	return report, errors.Join(errs...)
}

// repairPair re-plans the pair from its current documents and ledger and writes the result.
func (rec *Reconciler) repairPair(ctx context.Context, aID string, bID string) ([]Repair, error) {
	var repairs []Repair
	plan := func(pair d.Pair) (d.Mutation, d.Mutation) {
		repairs = planPair(pair)
		return mutationFor(repairs, pair.A.ID), mutationFor(repairs, pair.B.ID)
	}

	if tx, ok := rec.dir.(d.Transactor); ok {
		if err := tx.RepairPair(ctx, aID, bID, plan); err != nil {
			return nil, err
		}
		return repairs, nil
	}

	pair, err := readPair(ctx, rec.dir, aID, bID)
	if err != nil {
		return nil, err
	}
	aMutation, bMutation := plan(pair)
	if len(aMutation) > 0 {
		if err := rec.dir.Update(ctx, aID, aMutation); err != nil {
			return nil, err
		}
	}
	if len(bMutation) > 0 {
		if err := rec.dir.Update(ctx, bID, bMutation); err != nil {
			return nil, err
		}
	}
	return repairs, nil
}

func (rec *Reconciler) logRepair(repair Repair) {
	rec.logger.Info("repaired relationship", zap.String("user_id", repair.UserID), zap.String("field", string(repair.Field)),
		zap.String("op", repair.Op.String()), zap.String("value", repair.Value), zap.String("reason", repair.Reason))
}

func (rec *Reconciler) logFailure(repair Repair, err error) {
	rec.logger.Warn("repair failed", zap.String("user_id", repair.UserID), zap.String("field", string(repair.Field)),
		zap.String("value", repair.Value), zap.Error(err))
}

// readPair loads a pair without isolation, for directories that cannot lock it.
func readPair(ctx context.Context, dir d.Directory, aID string, bID string) (d.Pair, error) {
	var pair d.Pair
	var err error
	if pair.A, err = dir.Get(ctx, aID); err != nil {
		return d.Pair{}, err
	}
	if pair.B, err = dir.Get(ctx, bID); err != nil {
		return d.Pair{}, err
	}
	if pair.AToB, err = optionalRequest(ctx, dir, aID, bID); err != nil {
		return d.Pair{}, err
	}
	if pair.BToA, err = optionalRequest(ctx, dir, bID, aID); err != nil {
		return d.Pair{}, err
	}
	return pair, nil
}

func optionalRequest(ctx context.Context, dir d.Directory, senderID string, receiverID string) (*m.FriendRequest, error) {
	request, err := dir.GetRequest(ctx, senderID, receiverID)
	if errors.Is(err, d.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func mutationFor(repairs []Repair, userID string) d.Mutation {
	mutation := d.Mutation{}
	for _, repair := range repairs {
		if repair.UserID == userID {
			mutation = append(mutation, repair.Mutation()...)
		}
	}
	return mutation
}

type repairGroup struct {
	userID  string
	peerID  string
	repairs []Repair
}

// groupRepairs keeps single-document repairs one per group and collects each pair's repairs
// into the group of its first repair.
func groupRepairs(repairs []Repair) []repairGroup {
	var groups []repairGroup
	pairIndex := map[[2]string]int{}
	for _, repair := range repairs {
		if repair.PeerID == "" {
			groups = append(groups, repairGroup{userID: repair.UserID, repairs: []Repair{repair}})
			continue
		}
		key := pairKey(repair.UserID, repair.PeerID)
		i, ok := pairIndex[key]
		if !ok {
			i = len(groups)
			pairIndex[key] = i
			groups = append(groups, repairGroup{userID: key[0], peerID: key[1]})
		}
		groups[i].repairs = append(groups[i].repairs, repair)
	}
	return groups
}

func pairKey(aID string, bID string) [2]string {
	if bID < aID {
		return [2]string{bID, aID}
	}
	return [2]string{aID, bID}
}

// PlanRepairs computes the repairs for every pair that a focus user's document mentions.
// users must hold every document that exists among the ids referenced by the focus users.
// ledger may be nil, in which case every half of a request counts as pending.
func PlanRepairs(users map[string]m.User, ledger Ledger, focus []string) []Repair {
	var repairs []Repair

	focus = append([]string(nil), focus...)
	sort.Strings(focus)
	donePairs := map[[2]string]bool{}

	for _, selfID := range focus {
		self, ok := users[selfID]
		if !ok {
			continue
		}

		var peers []string
		seenPeers := map[string]bool{}
		for _, field := range d.RelationshipFields {
			seenValues := map[string]bool{}
			for _, value := range *d.FieldValues(&self, field) {
				if seenValues[value] {
					continue
				}
				seenValues[value] = true
				if value == selfID {
					repairs = append(repairs, Repair{UserID: selfID, Field: field, Op: d.ArrayRemove, Value: value, Reason: ReasonSelfReference})
					continue
				}
				if _, exists := users[value]; !exists {
					repairs = append(repairs, Repair{UserID: selfID, Field: field, Op: d.ArrayRemove, Value: value, Reason: ReasonDanglingReference})
					continue
				}
				if field != d.FieldFollowing && !seenPeers[value] {
					seenPeers[value] = true
					peers = append(peers, value)
				}
			}
		}

		for _, peerID := range peers {
			key := pairKey(selfID, peerID)
			if donePairs[key] {
				continue
			}
			donePairs[key] = true

			pair := d.Pair{
				A:    users[key[0]],
				B:    users[key[1]],
				AToB: ledger.lookup(key[0], key[1]),
				BToA: ledger.lookup(key[1], key[0]),
			}
			repairs = append(repairs, planPair(pair)...)
		}
	}
	return repairs
}

type membership struct {
	user    *m.User
	peerID  string
	field   d.Field
	value   string
	present bool
	reason  string
}

// planPair returns the repairs that bring both documents of pair to one agreed state.
func planPair(pair d.Pair) []Repair {
	a, b := &pair.A, &pair.B

	var target []membership
	if d.Contains(a.Friends, b.ID) || d.Contains(b.Friends, a.ID) {
		target = []membership{
			{a, b.ID, d.FieldFriends, b.ID, true, ReasonOneSidedFriend},
			{b, a.ID, d.FieldFriends, a.ID, true, ReasonOneSidedFriend},
			{a, b.ID, d.FieldRequestsSent, b.ID, false, ReasonRequestAndFriend},
			{a, b.ID, d.FieldRequestsReceived, b.ID, false, ReasonRequestAndFriend},
			{b, a.ID, d.FieldRequestsSent, a.ID, false, ReasonRequestAndFriend},
			{b, a.ID, d.FieldRequestsReceived, a.ID, false, ReasonRequestAndFriend},
		}
	} else {
		target = append(target, requestTarget(a, b, pair.AToB)...)
		target = append(target, requestTarget(b, a, pair.BToA)...)
	}

	var repairs []Repair
	for _, want := range target {
		values := *d.FieldValues(want.user, want.field)
		if d.Contains(values, want.value) == want.present {
			continue
		}
		op := d.ArrayUnion
		if !want.present {
			op = d.ArrayRemove
		}
		repairs = append(repairs, Repair{
			UserID: want.user.ID,
			PeerID: want.peerID,
			Field:  want.field,
			Op:     op,
			Value:  want.value,
			Reason: want.reason,
		})
	}
	return repairs
}

// requestTarget settles the sender -> receiver request. Both halves present, or neither, is left
// alone. With one half missing, a resolved ledger record means the resolution was half-applied and
// the leftover half goes; otherwise the send was half-applied and the missing half is written.
func requestTarget(sender *m.User, receiver *m.User, record *m.FriendRequest) []membership {
	sent := d.Contains(sender.FriendRequestsSent, receiver.ID)
	received := d.Contains(receiver.FriendRequestsReceived, sender.ID)
	if sent == received {
		return nil
	}

	if record != nil && !record.Pending() {
		return []membership{
			{sender, receiver.ID, d.FieldRequestsSent, receiver.ID, false, ReasonResolvedRequest},
			{receiver, sender.ID, d.FieldRequestsReceived, sender.ID, false, ReasonResolvedRequest},
		}
	}
	return []membership{
		{sender, receiver.ID, d.FieldRequestsSent, receiver.ID, true, ReasonOneSidedRequest},
		{receiver, sender.ID, d.FieldRequestsReceived, sender.ID, true, ReasonOneSidedRequest},
	}
}

package negotiation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/startsmart/internal/data"
)

type fakeFundings struct {
	mu        sync.Mutex
	byID      map[bson.ObjectID]*data.FundingRequest
	flipErr   error
	flipCalls int
}

func newFakeFundings() *fakeFundings {
	return &fakeFundings{byID: make(map[bson.ObjectID]*data.FundingRequest)}
}

func (f *fakeFundings) Create(_ context.Context, fr *data.FundingRequest) (*data.FundingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *fr
	cp.ID = bson.NewObjectID()
	cp.Status = data.FundingPending
	f.byID[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeFundings) GetByID(_ context.Context, id bson.ObjectID) (*data.FundingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fr, ok := f.byID[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *fr
	return &cp, nil
}

func (f *fakeFundings) MarkNegotiated(_ context.Context, id bson.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flipCalls++
	if f.flipErr != nil {
		return false, f.flipErr
	}
	fr, ok := f.byID[id]
	if !ok || fr.Status != data.FundingPending {
		return false, nil
	}
	fr.Status = data.FundingNegotiated
	return true, nil
}

func (f *fakeFundings) ListByIdea(_ context.Context, ideaID bson.ObjectID) ([]*data.FundingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*data.FundingRequest
	for _, fr := range f.byID {
		if fr.IdeaID == ideaID {
			cp := *fr
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeFundings) IDsByEntrepreneur(_ context.Context, entrepreneurID bson.ObjectID) ([]bson.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bson.ObjectID
	for id, fr := range f.byID {
		if fr.EntrepreneurID == entrepreneurID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeFundings) IDsByIdeas(_ context.Context, ideaIDs []bson.ObjectID) ([]bson.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bson.ObjectID
	for id, fr := range f.byID {
		for _, idea := range ideaIDs {
			if fr.IdeaID == idea {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

type interestKey struct{ idea, investor bson.ObjectID }

type fakeInterests struct {
	mu   sync.Mutex
	recs map[interestKey]*data.Interest
}

func newFakeInterests() *fakeInterests {
	return &fakeInterests{recs: make(map[interestKey]*data.Interest)}
}

func (f *fakeInterests) Create(_ context.Context, ideaID, investorID bson.ObjectID, note string) (*data.Interest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := interestKey{ideaID, investorID}
	if _, ok := f.recs[k]; ok {
		return nil, data.ErrDuplicateInterest
	}
	in := &data.Interest{ID: bson.NewObjectID(), IdeaID: ideaID, InvestorID: investorID, Note: note}
	f.recs[k] = in
	return in, nil
}

func (f *fakeInterests) Exists(_ context.Context, ideaID, investorID bson.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.recs[interestKey{ideaID, investorID}]
	return ok, nil
}

func (f *fakeInterests) IdeaIDsByInvestor(_ context.Context, investorID bson.ObjectID) ([]bson.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bson.ObjectID
	for k := range f.recs {
		if k.investor == investorID {
			out = append(out, k.idea)
		}
	}
	return out, nil
}

func (f *fakeInterests) InvestorIDsByIdea(_ context.Context, ideaID bson.ObjectID) ([]bson.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bson.ObjectID
	for k := range f.recs {
		if k.idea == ideaID {
			out = append(out, k.investor)
		}
	}
	return out, nil
}

type fakeMessages struct {
	mu      sync.Mutex
	byID    map[bson.ObjectID]*data.NegotiationMessage
	senders map[bson.ObjectID]*data.SenderInfo
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		byID:    make(map[bson.ObjectID]*data.NegotiationMessage),
		senders: make(map[bson.ObjectID]*data.SenderInfo),
	}
}

func (f *fakeMessages) resolve(m *data.NegotiationMessage) *data.NegotiationMessage {
	cp := *m
	if s, ok := f.senders[m.SenderID]; ok {
		sc := *s
		cp.Sender = &sc
	}
	return &cp
}

func (f *fakeMessages) Insert(_ context.Context, msg *data.NegotiationMessage) (*data.NegotiationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *msg
	cp.ID = bson.NewObjectID()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = cp.CreatedAt
	cp.ViewedBy = []data.ViewedEntry{}
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeMessages) GetByID(_ context.Context, id bson.ObjectID) (*data.NegotiationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	return f.resolve(m), nil
}

func (f *fakeMessages) thread(frID bson.ObjectID) []*data.NegotiationMessage {
	var out []*data.NegotiationMessage
	for _, m := range f.byID {
		if m.FundingRequestID == frID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (f *fakeMessages) ListByFundingRequest(_ context.Context, frID bson.ObjectID, skip, limit int64) ([]*data.NegotiationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.thread(frID)
	var out []*data.NegotiationMessage
	for i := skip; i < int64(len(all)) && int64(len(out)) < limit; i++ {
		out = append(out, f.resolve(all[i]))
	}
	return out, nil
}

func (f *fakeMessages) CountByFundingRequest(_ context.Context, frID bson.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.thread(frID))), nil
}

func (f *fakeMessages) MarkDelivered(_ context.Context, frID bson.ObjectID, ids []bson.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		m, ok := f.byID[id]
		if ok && m.FundingRequestID == frID && m.Status == data.StatusSent {
			m.Status = data.StatusDelivered
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) RetryFailed(_ context.Context, id, senderID bson.ObjectID) (*data.NegotiationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok || m.SenderID != senderID || m.Status != data.StatusFailed {
		return nil, data.ErrNotFound
	}
	m.Status = data.StatusSent
	m.RetryCount++
	m.ErrorMessage = ""
	cp := *m
	return &cp, nil
}

func (f *fakeMessages) CountUnread(_ context.Context, userID bson.ObjectID, frIDs []bson.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, frID := range frIDs {
		for _, m := range f.thread(frID) {
			if m.SenderID != userID && (m.Status == data.StatusSent || m.Status == data.StatusPending) {
				n++
			}
		}
	}
	return n, nil
}

func (f *fakeMessages) MarkViewed(_ context.Context, id, userID bson.ObjectID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	for _, v := range m.ViewedBy {
		if v.User == userID {
			return false, nil
		}
	}
	m.ViewedBy = append(m.ViewedBy, data.ViewedEntry{User: userID, ViewedAt: at})
	return true, nil
}

// setStatus forces a status, standing in for a delivery worker.
func (f *fakeMessages) setStatus(id bson.ObjectID, st data.MessageStatus, errMsg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].Status = st
	f.byID[id].ErrorMessage = errMsg
}

var errBoom = errors.New("boom")

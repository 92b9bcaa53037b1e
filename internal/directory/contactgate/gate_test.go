package contactgate

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/redis/go-redis/v9/maintnotifications.(*CircuitBreakerManager).cleanupLoop"),
	)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Send(ctx context.Context, lead models.LeadCapture) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

type failingStore struct{}

func (failingStore) Load(context.Context, string, string) (Entry, error) {
	return Entry{}, errors.NewUnavailableError("redis", stderrors.New("connection refused"))
}

func (failingStore) Save(context.Context, string, string, Entry) error {
	return errors.NewUnavailableError("redis", stderrors.New("connection refused"))
}

func testListing() *models.Listing {
	return &models.Listing{ID: "biz-1", Name: "Joe's Pizza", Phone: "+1 (512) 555-0100", Email: "joe@pizza.com"}
}

func validForm() LeadForm {
	return LeadForm{Name: " Ann ", Email: "ann@example.com", Phone: "+91 98765-43210"}
}

func newGate(t *testing.T, sink LeadSink) *Gate {
	g := New(Config{LeadTimeout: time.Second}, NewMemoryStore(), sink, logger.NewTestLogger(t))
	g.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return g
}

var visitor = models.Session{ID: "sess-1"}

func TestGate_FullFlow(t *testing.T) {
	ctx := context.Background()
	sink := new(MockSink)
	sink.On("Send", mock.Anything, mock.MatchedBy(func(l models.LeadCapture) bool {
		return l.BusinessID == "biz-1" && l.VisitorName == "Ann" && l.BusinessPhone == "+1 (512) 555-0100"
	})).Return(nil).Once()
	g := newGate(t, sink)
	listing := testListing()

	res, err := g.RequestReveal(ctx, visitor, listing)
	require.NoError(t, err)
	assert.Equal(t, FormOpen, res.State)
	assert.True(t, res.FormRequired)
	assert.Empty(t, res.Phone)

	res, err = g.Submit(ctx, visitor, listing, validForm())
	require.NoError(t, err)
	assert.Equal(t, Revealed, res.State)
	assert.Equal(t, "+1 (512) 555-0100", res.Phone)
	assert.Equal(t, "https://wa.me/15125550100", res.WhatsAppURL)

	for i := 0; i < 3; i++ {
		again, err := g.RequestReveal(ctx, visitor, listing)
		require.NoError(t, err)
		assert.Equal(t, Revealed, again.State)
		assert.False(t, again.FormRequired)
		assert.Equal(t, res.Phone, again.Phone)
	}

	_, err = g.Submit(ctx, visitor, listing, validForm())
	require.NoError(t, err)

	sink.AssertExpectations(t)
	sink.AssertNumberOfCalls(t, "Send", 1)
}

func TestGate_LockedWithholdsPhoneOnRepeatedViews(t *testing.T) {
	g := newGate(t, nil)
	for i := 0; i < 3; i++ {
		res, err := g.RequestReveal(context.Background(), visitor, testListing())
		require.NoError(t, err)
		assert.Empty(t, res.Phone)
	}
}

func TestGate_InvalidSubmissionKeepsFormOpen(t *testing.T) {
	tests := []struct {
		name       string
		form       LeadForm
		wantFields []string
	}{
		{"invalid email", LeadForm{Name: "Ann", Email: "not-an-email", Phone: "12345"}, []string{"email"}},
		{"blank name", LeadForm{Name: "   ", Email: "a@b.co", Phone: "12345"}, []string{"name"}},
		{"letters in phone", LeadForm{Name: "Ann", Email: "a@b.co", Phone: "call me"}, []string{"phone"}},
		{"everything wrong", LeadForm{}, []string{"name", "email", "phone"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			sink := new(MockSink)
			g := newGate(t, sink)
			listing := testListing()

			_, err := g.RequestReveal(ctx, visitor, listing)
			require.NoError(t, err)

			res, err := g.Submit(ctx, visitor, listing, tt.form)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))

			stdErr, ok := errors.AsStandard(err)
			require.True(t, ok)
			assert.Len(t, stdErr.Fields, len(tt.wantFields))
			for _, f := range tt.wantFields {
				assert.Contains(t, stdErr.Fields, f)
			}

			assert.Equal(t, FormOpen, res.State)
			assert.Empty(t, res.Phone)

			state, err := g.State(ctx, visitor, listing.ID)
			require.NoError(t, err)
			assert.Equal(t, FormOpen, state)
			sink.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestGate_SinkFailureStillReveals(t *testing.T) {
	sink := new(MockSink)
	sink.On("Send", mock.Anything, mock.Anything).Return(stderrors.New("timeout")).Once()
	g := newGate(t, sink)

	res, err := g.Submit(context.Background(), visitor, testListing(), validForm())
	require.NoError(t, err)
	assert.Equal(t, Revealed, res.State)
	assert.Equal(t, "+1 (512) 555-0100", res.Phone)
	sink.AssertExpectations(t)
}

func TestGate_CancelDiscardsDraft(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, nil)
	listing := testListing()

	_, err := g.RequestReveal(ctx, visitor, listing)
	require.NoError(t, err)
	_, err = g.Submit(ctx, visitor, listing, LeadForm{Name: "Ann", Email: "bad"})
	require.Error(t, err)

	res, err := g.RequestReveal(ctx, visitor, listing)
	require.NoError(t, err)
	require.NotNil(t, res.Draft)
	assert.Equal(t, "Ann", res.Draft.Name)

	state, err := g.Cancel(ctx, visitor, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, Locked, state)

	res, err = g.RequestReveal(ctx, visitor, listing)
	require.NoError(t, err)
	assert.Equal(t, FormOpen, res.State)
	assert.Nil(t, res.Draft)
}

func TestGate_CancelAfterRevealIsNoop(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, nil)
	listing := testListing()

	_, err := g.Submit(ctx, visitor, listing, validForm())
	require.NoError(t, err)

	state, err := g.Cancel(ctx, visitor, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, Revealed, state)
}

func TestGate_StateIsScopedPerSessionAndBusiness(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, nil)
	listing := testListing()
	other := &models.Listing{ID: "biz-2", Phone: "555"}

	_, err := g.Submit(ctx, visitor, listing, validForm())
	require.NoError(t, err)

	res, err := g.RequestReveal(ctx, models.Session{ID: "sess-2"}, listing)
	require.NoError(t, err)
	assert.Equal(t, FormOpen, res.State)

	res, err = g.RequestReveal(ctx, visitor, other)
	require.NoError(t, err)
	assert.Equal(t, FormOpen, res.State)
}

func TestGate_RequiresSession(t *testing.T) {
	g := newGate(t, nil)
	_, err := g.RequestReveal(context.Background(), models.Session{}, testListing())
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))
}

func TestGate_StoreFailureIsUnavailable(t *testing.T) {
	g := New(DefaultConfig(), failingStore{}, nil, logger.NewNoOpLogger())
	_, err := g.RequestReveal(context.Background(), visitor, testListing())
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
}

func TestWhatsAppURL(t *testing.T) {
	assert.Equal(t, "https://wa.me/919876543210", WhatsAppURL("+91 98765-43210"))
	assert.Equal(t, "", WhatsAppURL(""))
}

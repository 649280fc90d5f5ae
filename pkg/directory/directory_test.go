package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/zapdesk/pkg/imagecache"
	"github.com/zapdesk/zapdesk/pkg/session"
	"github.com/zapdesk/zapdesk/pkg/wa"
)

// dirClient is a wa.Client that only answers directory queries.
type dirClient struct {
	contacts []wa.RawContact
	photoURL map[string]string
	photoErr map[string]error
}

func (d *dirClient) Start(ctx context.Context) error           { return nil }
func (d *dirClient) Destroy(ctx context.Context) error         { return nil }
func (d *dirClient) Events() <-chan wa.Event                   { return nil }
func (d *dirClient) State(ctx context.Context) (string, error) { return wa.StateConnected, nil }

func (d *dirClient) Contacts(ctx context.Context) ([]wa.RawContact, error) {
	return d.contacts, nil
}

func (d *dirClient) ProfilePictureURL(ctx context.Context, contactID string) (string, error) {
	if err := d.photoErr[contactID]; err != nil {
		return "", err
	}
	return d.photoURL[contactID], nil
}

func (d *dirClient) SendText(ctx context.Context, chatID, content string) (wa.RawMessage, error) {
	return wa.RawMessage{}, nil
}
func (d *dirClient) EditText(ctx context.Context, chatID, messageID, newContent string) error {
	return nil
}
func (d *dirClient) RevokeMessage(ctx context.Context, chatID, messageID string) error { return nil }
func (d *dirClient) ChatMessages(ctx context.Context, chatID string, limit int) ([]wa.RawMessage, error) {
	return nil, nil
}

type fixedSession struct {
	client wa.Client
	err    error
}

func (f *fixedSession) ActiveClient() (wa.Client, error) { return f.client, f.err }

func brScheme() wa.NumberScheme { return wa.NumberScheme{Prefix: "55", Length: 12} }

func rawContact(i int) wa.RawContact {
	return wa.RawContact{
		ID:     fmt.Sprintf("55119999%04d@c.us", i),
		Name:   fmt.Sprintf("Contact %d", i),
		Number: fmt.Sprintf("55119999%04d", i),
	}
}

func newTestDirectory(t *testing.T, client *dirClient) *Directory {
	t.Helper()
	images, err := imagecache.New(t.TempDir())
	require.NoError(t, err)
	return New(&fixedSession{client: client}, images, brScheme(), 4)
}

func TestListFiltersGroupsAndForeignNumbers(t *testing.T) {
	client := &dirClient{contacts: []wa.RawContact{
		rawContact(1),
		{ID: "g1@g.us", Name: "Equipe", Number: "551100000000", IsGroup: true},
		{ID: "14155550100@c.us", Name: "Abroad", Number: "14155550100"},
		{ID: "5511999@c.us", Name: "Short", Number: "5511999"},
		rawContact(2),
	}}

	page, err := newTestDirectory(t, client).List(context.Background(), 1, 50)
	require.NoError(t, err)

	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Contacts, 2)
	assert.Equal(t, "Contact 1", page.Contacts[0].Name)
	assert.Equal(t, "Contact 2", page.Contacts[1].Name)
	assert.False(t, page.HasMore)
}

func TestListNameFallback(t *testing.T) {
	client := &dirClient{contacts: []wa.RawContact{
		{ID: "a@c.us", Name: "Saved", PushName: "Push", Number: "551199990001"},
		{ID: "b@c.us", PushName: "Push Only", Number: "551199990002"},
		{ID: "c@c.us", Number: "551199990003"},
	}}

	page, err := newTestDirectory(t, client).List(context.Background(), 1, 50)
	require.NoError(t, err)
	require.Len(t, page.Contacts, 3)
	assert.Equal(t, "Saved", page.Contacts[0].Name)
	assert.Equal(t, "Push Only", page.Contacts[1].Name)
	assert.Equal(t, "Sem Nome", page.Contacts[2].Name)
}

func TestListPaginatesAfterFiltering(t *testing.T) {
	client := &dirClient{}
	for i := 0; i < 25; i++ {
		client.contacts = append(client.contacts, rawContact(i))
	}
	// Groups interleaved with real contacts must not eat page slots.
	client.contacts = append(client.contacts,
		wa.RawContact{ID: "g@g.us", Number: "551100000000", IsGroup: true})

	dir := newTestDirectory(t, client)

	seen := map[string]bool{}
	for p := 1; p <= 3; p++ {
		page, err := dir.List(context.Background(), p, 10)
		require.NoError(t, err)
		assert.Equal(t, 25, page.Total)
		assert.Equal(t, p, page.Page)
		for _, c := range page.Contacts {
			assert.False(t, seen[c.ID], "contact %s appeared on two pages", c.ID)
			seen[c.ID] = true
		}
		assert.Equal(t, p < 3, page.HasMore)
	}
	assert.Len(t, seen, 25)

	// One step past the end: empty page, exact total, no more.
	page, err := dir.List(context.Background(), 4, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Contacts)
	assert.Equal(t, 25, page.Total)
	assert.False(t, page.HasMore)
}

func TestListHasMoreExactBoundary(t *testing.T) {
	client := &dirClient{}
	for i := 0; i < 20; i++ {
		client.contacts = append(client.contacts, rawContact(i))
	}
	dir := newTestDirectory(t, client)

	page, err := dir.List(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Len(t, page.Contacts, 10)
	assert.False(t, page.HasMore, "last exactly-full page has no more")
}

func TestListClampsPageAndLimit(t *testing.T) {
	client := &dirClient{contacts: []wa.RawContact{rawContact(1)}}
	page, err := newTestDirectory(t, client).List(context.Background(), 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.Limit)
	assert.Len(t, page.Contacts, 1)
}

func TestListEnrichesPhotos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	a, b := rawContact(1), rawContact(2)
	client := &dirClient{
		contacts: []wa.RawContact{a, b},
		photoURL: map[string]string{a.ID: srv.URL + "/pic.jpg"},
	}

	page, err := newTestDirectory(t, client).List(context.Background(), 1, 50)
	require.NoError(t, err)
	require.Len(t, page.Contacts, 2)

	require.NotNil(t, page.Contacts[0].Photo)
	assert.Contains(t, *page.Contacts[0].Photo, "/images/")
	assert.Nil(t, page.Contacts[1].Photo, "contact without a picture keeps photo null")
}

func TestListPhotoFailureDegradesToNull(t *testing.T) {
	a := rawContact(1)
	client := &dirClient{
		contacts: []wa.RawContact{a},
		photoErr: map[string]error{a.ID: fmt.Errorf("profile pic fetch blocked")},
	}

	page, err := newTestDirectory(t, client).List(context.Background(), 1, 50)
	require.NoError(t, err)
	require.Len(t, page.Contacts, 1)
	assert.Nil(t, page.Contacts[0].Photo)
	assert.Equal(t, 1, page.Total, "a failed photo never drops the contact")
}

func TestListWithoutSession(t *testing.T) {
	images, err := imagecache.New(t.TempDir())
	require.NoError(t, err)
	dir := New(&fixedSession{err: session.ErrNotInitialized}, images, brScheme(), 4)

	_, err = dir.List(context.Background(), 1, 50)
	assert.ErrorIs(t, err, session.ErrNotInitialized)
}

/*
LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This file is part of Ocean Shorts. Ocean Shorts is free software: you can
  redistribute it and/or modify it under the terms of the GNU
  General Public License as published by the Free Software
  Foundation, either version 3 of the License, or (at your option)
  any later version.

  Ocean Shorts is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see <http://www.gnu.org/licenses/>.
*/

package notify

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	mailjet "github.com/mailjet/mailjet-apiv3-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausocean/shorts/gauth"
	"github.com/ausocean/shorts/model"
)

const (
	projectID = "test"
	channel   = "motivation_tr"
	message   = "Upload failed: quota exceeded."
	recipient = "testing@ausocean.org"
)

// testStore implements a dummy time store for testing purposes.
type testStore struct {
	Attempted int
	Delivered int
}

// Sendable alternates between returning true and false.
func (ts *testStore) Sendable(ctx context.Context, period time.Duration, key string) (bool, error) {
	ts.Attempted++
	return ts.Attempted%2 != 0, nil
}

// Sent just increments the sent counter.
func (ts *testStore) Sent(ctx context.Context, key string) error {
	ts.Delivered++
	return nil
}

// TestStore tests the time store functionality.
// For this test, we supply a test store without any secrets.
func TestStore(t *testing.T) {
	ctx := context.Background()

	n := Notifier{}
	ts := testStore{}
	err := n.Init(WithStore(&ts), WithRecipient(recipient))
	if err != nil {
		t.Errorf("Init failed with error: %v", err)
	}

	// Even numbered attempts should not be delivered.
	tests1 := []struct {
		attempted int
		delivered int
	}{
		{attempted: 1, delivered: 1},
		{attempted: 2, delivered: 1},
		{attempted: 3, delivered: 2},
	}

	for i, test := range tests1 {
		err = n.Send(ctx, channel, KindUpload, message)
		if err != nil {
			t.Errorf("Send #%d failed with error: %v", i, err)
		}
		if ts.Attempted != test.attempted {
			t.Errorf("Expected attempted to be %d, got  %d", test.attempted, ts.Attempted)
		}
		if ts.Delivered != test.delivered {
			t.Errorf("Expected delivered to be %d, got %d", test.delivered, ts.Delivered)
		}
	}

	// Now try with filters.
	tests2 := []struct {
		filter    string
		attempted int
		delivered int
	}{
		{filter: "quota", attempted: 4, delivered: 2},
		{filter: "quota", attempted: 5, delivered: 3},
		{filter: "token", attempted: 5, delivered: 3},
	}
	for i, test := range tests2 {
		// Re-initialize with the filter.
		err = n.Init(WithFilter(test.filter), WithStore(&ts), WithRecipient(recipient))
		if err != nil {
			t.Errorf("Init failed with error: %v", err)
		}
		err = n.Send(ctx, channel, KindUpload, message)
		if err != nil {
			t.Errorf("Send #%d failed with error: %v", i, err)
		}
		if ts.Attempted != test.attempted {
			t.Errorf("Expected attempted to be %d, got  %d", test.attempted, ts.Attempted)
		}
		if ts.Delivered != test.delivered {
			t.Errorf("Expected delivered to be %d, got %d", test.delivered, ts.Delivered)
		}
	}
}

// TestTimeStore tests suppression of repeats with a file datastore.
func TestTimeStore(t *testing.T) {
	ctx := context.Background()
	store, err := model.NewStore(ctx, t.TempDir())
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	ts := &timeStore{store: store, now: func() time.Time { return now }}

	var sent []*mailjet.MessagesV31
	n, err := New(
		WithStore(ts),
		WithPeriod(time.Hour),
		WithRecipients([]string{"a@example.com", " ", "b@example.com"}),
		WithSecrets(map[string]string{"mailjetPublicKey": "pub", "mailjetPrivateKey": "priv"}),
		WithLogger((*logging.TestLogger)(t)),
	)
	require.NoError(t, err)
	n.mail = func(m *mailjet.MessagesV31) error {
		sent = append(sent, m)
		return nil
	}

	require.NoError(t, n.Send(ctx, channel, KindUpload, message))
	require.Len(t, sent, 2)
	assert.Equal(t, "Shorts upload notification: motivation_tr", sent[0].Info[0].Subject)
	assert.Equal(t, message, sent[0].Info[0].TextPart)

	// Repeats within the period are suppressed.
	now = now.Add(30 * time.Minute)
	require.NoError(t, n.Send(ctx, channel, KindUpload, message))
	assert.Len(t, sent, 2)

	// Other kinds and channels are independent.
	require.NoError(t, n.Send(ctx, channel, KindAuth, message))
	require.NoError(t, n.Send(ctx, "tech_en", KindUpload, message))
	assert.Len(t, sent, 6)

	now = now.Add(time.Hour)
	require.NoError(t, n.Send(ctx, channel, KindUpload, message))
	assert.Len(t, sent, 8)
}

func TestOptions(t *testing.T) {
	_, err := New(WithSecrets(map[string]string{"mailjetPublicKey": "pub"}))
	assert.Error(t, err)
	_, err = New(WithPeriod(-time.Second))
	assert.Error(t, err)

	// Without secrets nothing is delivered.
	n, err := New(WithRecipient(recipient))
	require.NoError(t, err)
	n.mail = func(*mailjet.MessagesV31) error {
		t.Fatal("unexpected delivery")
		return nil
	}
	assert.NoError(t, n.Send(context.Background(), channel, KindUpload, message))
}

// TestSend tests sending an actual email.
// For this test, we supply secrets and a test recipient.
// It is recommended to run this only locally, as it sends actual emails.
func TestSend(t *testing.T) {
	if os.Getenv("TEST_SECRETS") == "" {
		t.Skip("TEST_SECRETS required for TestSend")
	}

	ctx := context.Background()
	secrets, err := gauth.GetSecrets(ctx, projectID, nil)
	if err != nil {
		t.Fatalf("Could not get secrets for %s: %v", projectID, err)
	}

	n, err := New(WithSecrets(secrets), WithRecipient(recipient))
	if err != nil {
		t.Fatalf("New failed with error: %v", err)
	}

	err = n.Send(ctx, channel, KindUpload, message)
	if err != nil {
		t.Errorf("Send failed with error: %v", err)
	}
}

func TestSendNoRecipients(t *testing.T) {
	var buf bytes.Buffer
	ts := testStore{}
	var sent int
	n, err := New(WithStore(&ts), WithLogger(logging.New(logging.Debug, &buf, false)))
	require.NoError(t, err)
	n.mail = func(*mailjet.MessagesV31) error {
		sent++
		return nil
	}

	err = n.Send(context.Background(), channel, KindUpload, message)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "no notification recipients")
	assert.Contains(t, buf.String(), message)
	assert.Equal(t, 0, ts.Attempted)
	assert.Equal(t, 0, sent)
}

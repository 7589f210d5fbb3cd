package messagebroker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Respond(t *testing.T) {
	var got []byte
	respond := func(b []byte) error {
		got = b
		return nil
	}

	require.NoError(t, NewMessage("ledger.transactions.intake", "_INBOX.7", nil, respond).Respond([]byte("ok")))
	assert.Equal(t, []byte("ok"), got)

	got = nil
	require.NoError(t, NewMessage("ledger.transactions.intake", "", nil, respond).Respond([]byte("ignored")))
	assert.Nil(t, got, "no reply subject means nobody is waiting")

	assert.NoError(t, Message{Reply: "_INBOX.8"}.Respond([]byte("x")))
}

type fakeClient struct{ NATSClient }

func TestEnsureStream_RequiresNATSBackedClient(t *testing.T) {
	err := EnsureStream(context.Background(), fakeClient{}, "LEDGER_WORKFLOWS", []string{"ledger.workflows.>"})
	assert.ErrorContains(t, err, "NATS-backed")
}

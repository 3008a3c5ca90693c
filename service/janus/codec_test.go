package janus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCreate(t *testing.T) {
	raw, err := Encode(Command{Kind: KindCreate, Transaction: "T1"}, "s3cr3t")
	require.NoError(t, err)
	assert.JSONEq(t, `{"janus":"create","apisecret":"s3cr3t","transaction":"T1"}`, string(raw))
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	raw, err := Encode(Command{Kind: KindKeepalive, Transaction: "T2", SessionID: 42}, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"janus":"keepalive","transaction":"T2","session_id":42}`, string(raw))

	raw, err = Encode(Command{
		Kind: KindMessage, Transaction: "T3", SessionID: 42, HandleID: 7,
		Body: json.RawMessage(`{"request":"kick","room":5555,"id":9}`),
	}, "")
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"janus":"message","transaction":"T3","session_id":42,"handle_id":7,"body":{"request":"kick","room":5555,"id":9}}`,
		string(raw))

	raw, err = Encode(Command{Kind: KindAttach, Transaction: "T4", SessionID: 42, Plugin: DefaultPlugin}, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"janus":"attach","transaction":"T4","session_id":42,"plugin":"janus.plugin.videoroom"}`, string(raw))
}

func TestEncodeRequiresTransaction(t *testing.T) {
	_, err := Encode(Command{Kind: KindCreate}, "")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeClassification(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		kind  MessageKind
		reply bool
	}{
		{"success", `{"janus":"success","transaction":"T1","data":{"id":42}}`, MessageSuccess, true},
		{"error", `{"janus":"error","transaction":"T1","error":{"code":403,"reason":"Unauthorized"}}`, MessageError, true},
		{"ack", `{"janus":"ack","session_id":42,"transaction":"T1"}`, MessageAck, true},
		{"event", `{"janus":"event","session_id":42,"sender":7,"plugindata":{"plugin":"janus.plugin.videoroom","data":{}}}`, MessageEvent, false},
		{"event with transaction", `{"janus":"event","session_id":42,"transaction":"T9","plugindata":{"plugin":"p","data":{}}}`, MessageEvent, false},
		{"webrtcup", `{"janus":"webrtcup","session_id":42,"sender":7}`, MessageEvent, false},
		{"hangup", `{"janus":"hangup","session_id":42,"sender":7,"reason":"DTLS alert"}`, MessageEvent, false},
		{"timeout", `{"janus":"timeout","session_id":42}`, MessageEvent, false},
		{"success without transaction", `{"janus":"success","data":{"id":1}}`, MessageEvent, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Decode([]byte(tc.frame))
			require.NoError(t, err)
			assert.Equal(t, tc.kind, msg.Kind)
			assert.Equal(t, tc.reply, msg.Reply())
			assert.Equal(t, tc.frame, string(msg.Raw))
		})
	}
}

func TestDecodeFields(t *testing.T) {
	msg, err := Decode([]byte(`{"janus":"success","session_id":42,"transaction":"T5","sender":7,
		"plugindata":{"plugin":"janus.plugin.videoroom","data":{"videoroom":"created","room":5555}},
		"jsep":{"type":"offer","sdp":"v=0"}}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), msg.SessionID)
	assert.Equal(t, uint64(7), msg.Sender)
	require.NotNil(t, msg.PluginData)
	assert.Equal(t, "janus.plugin.videoroom", msg.PluginData.Plugin)
	assert.JSONEq(t, `{"videoroom":"created","room":5555}`, string(msg.PluginData.Data))
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(msg.Jsep))

	msg, err = Decode([]byte(`{"janus":"error","transaction":"T6","error":{"code":458,"reason":"No such session"}}`))
	require.NoError(t, err)
	require.NotNil(t, msg.Error)
	assert.Equal(t, 458, msg.Error.Code)
	assert.Equal(t, "No such session", msg.Error.Reason)

	msg, err = Decode([]byte(`{"janus":"error","transaction":"T7"}`))
	require.NoError(t, err)
	assert.NotNil(t, msg.Error)
}

func TestDecodeMalformed(t *testing.T) {
	for _, frame := range []string{
		`not json`,
		`[]`,
		`{"transaction":"T1"}`,
		`{"janus":"bogus","transaction":"T1"}`,
		`{"janus":42}`,
	} {
		_, err := Decode([]byte(frame))
		assert.ErrorIs(t, err, ErrMalformed, frame)
	}
}

// A gateway echoing an outbound frame as a success keeps every identifying field.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	cmds := []Command{
		{Kind: KindCreate, Transaction: "a1"},
		{Kind: KindAttach, Transaction: "a2", SessionID: 42, Plugin: DefaultPlugin},
		{Kind: KindKeepalive, Transaction: "a3", SessionID: 42},
		{Kind: KindMessage, Transaction: "a4", SessionID: 42, HandleID: 7, Body: json.RawMessage(`{"request":"list"}`)},
		{Kind: KindDestroy, Transaction: "a5", SessionID: 1<<53 + 1},
	}
	for _, cmd := range cmds {
		raw, err := Encode(cmd, "secret")
		require.NoError(t, err)

		var echo map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &echo))
		echo["janus"] = json.RawMessage(`"success"`)
		back, err := json.Marshal(echo)
		require.NoError(t, err)

		msg, err := Decode(back)
		require.NoError(t, err)
		assert.Equal(t, MessageSuccess, msg.Kind)
		assert.Equal(t, cmd.Transaction, msg.Transaction)
		assert.Equal(t, cmd.SessionID, msg.SessionID)
		assert.Equal(t, cmd.HandleID, msg.HandleID)
		if cmd.Body != nil {
			assert.JSONEq(t, string(cmd.Body), string(msg.Body))
		}
	}
}

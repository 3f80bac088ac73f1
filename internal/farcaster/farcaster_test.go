package farcaster

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/encoding/protowire"
	"lukechampine.com/blake3"
)

const testSeed = "0x" + "0101010101010101010101010101010101010101010101010101010101010101"

// decoded maps field numbers to raw bytes or varint values of one message level.
type decoded struct {
	bytes   map[protowire.Number][]byte
	varints map[protowire.Number]uint64
}

func decode(t *testing.T, b []byte) decoded {
	t.Helper()
	d := decoded{bytes: map[protowire.Number][]byte{}, varints: map[protowire.Number]uint64{}}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			require.GreaterOrEqual(t, n, 0)
			d.varints[num] = v
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			require.GreaterOrEqual(t, n, 0)
			d.bytes[num] = v
			b = b[n:]
		default:
			t.Fatalf("unexpected wire type %v", typ)
		}
	}
	return d
}

func TestAuthorHandle(t *testing.T) {
	assert.Equal(t, "alice", Author{FID: 1, Username: "alice", DisplayName: "Alice"}.Handle())
	assert.Equal(t, "Alice", Author{FID: 1, DisplayName: "Alice"}.Handle())
	assert.Equal(t, "fid:42", Author{FID: 42}.Handle())
}

func TestParseSigner(t *testing.T) {
	s, err := ParseSigner(testSeed)
	require.NoError(t, err)

	full := hex.EncodeToString(s.key)
	s2, err := ParseSigner(full)
	require.NoError(t, err)
	assert.Equal(t, s.PublicKey(), s2.PublicKey())

	_, err = ParseSigner("abcd")
	assert.Error(t, err)
	_, err = ParseSigner("zz")
	assert.Error(t, err)
}

func TestBuildCastAddReply(t *testing.T) {
	s, err := ParseSigner(testSeed)
	require.NoError(t, err)
	parentHash := "0x" + strings.Repeat("ab", 20)
	at := time.Unix(farcasterEpoch+100, 0)

	msg, err := BuildCastAdd(s, 977233, "nice build", &CastID{FID: 7, Hash: parentHash}, at)
	require.NoError(t, err)
	require.Len(t, msg.Hash, 20)

	top := decode(t, msg.Bytes)
	data := top.bytes[1]
	require.NotEmpty(t, data)

	sum := blake3.Sum256(data)
	assert.Equal(t, sum[:20], msg.Hash, "hash is blake3-160 of data bytes")
	assert.Equal(t, msg.Hash, top.bytes[2])
	assert.EqualValues(t, 1, top.varints[3])
	assert.EqualValues(t, 1, top.varints[5])
	assert.Equal(t, []byte(s.PublicKey()), top.bytes[6])
	assert.True(t, ed25519.Verify(s.PublicKey(), msg.Hash, top.bytes[4]), "signature verifies over hash")

	md := decode(t, data)
	assert.EqualValues(t, 1, md.varints[1])
	assert.EqualValues(t, 977233, md.varints[2])
	assert.EqualValues(t, 100, md.varints[3])
	assert.EqualValues(t, 1, md.varints[4])

	body := decode(t, md.bytes[5])
	assert.Equal(t, "nice build", string(body.bytes[4]))
	parent := decode(t, body.bytes[3])
	assert.EqualValues(t, 7, parent.varints[1])
	assert.Equal(t, strings.Repeat("ab", 20), hex.EncodeToString(parent.bytes[2]))

	assert.True(t, strings.HasPrefix(msg.HexHash(), "0x"))
	assert.Len(t, msg.HexHash(), 42)
}

func TestBuildCastAddTopLevel(t *testing.T) {
	s, _ := ParseSigner(testSeed)
	msg, err := BuildCastAdd(s, 1, "GM builders", nil, time.Now())
	require.NoError(t, err)
	md := decode(t, decode(t, msg.Bytes).bytes[1])
	body := decode(t, md.bytes[5])
	_, hasParent := body.bytes[3]
	assert.False(t, hasParent)
}

func TestBuildCastAddValidation(t *testing.T) {
	s, _ := ParseSigner(testSeed)
	now := time.Now()

	_, err := BuildCastAdd(s, 1, "   ", nil, now)
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = BuildCastAdd(s, 1, strings.Repeat("x", 321), nil, now)
	assert.ErrorIs(t, err, ErrTextTooLong)

	_, err = BuildCastAdd(s, 1, "hi", &CastID{FID: 2, Hash: "0xabc"}, now)
	assert.ErrorIs(t, err, ErrParentHash)
}

func TestNeynarFetchRecentPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/farcaster/feed/user/casts", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("fid"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "false", r.URL.Query().Get("include_replies"))
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		w.Write([]byte(`{"casts":[{"hash":"0x1","text":"GM","timestamp":"2026-03-04T09:00:00.000Z","author":{"fid":42,"username":"agent"}}]}`))
	}))
	defer srv.Close()

	n := NewNeynar(srv.URL, "", "k", srv.Client())
	casts, err := n.FetchRecentPosts(context.Background(), 42, 10)
	require.NoError(t, err)
	require.Len(t, casts, 1)
	assert.Equal(t, "0x1", casts[0].Hash)
	assert.Equal(t, 2026, casts[0].Timestamp.Year())
}

func TestNeynarFetchConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/farcaster/cast/conversation", r.URL.Path)
		assert.Equal(t, "hash", r.URL.Query().Get("type"))
		assert.Equal(t, "2", r.URL.Query().Get("reply_depth"))
		w.Write([]byte(`{"conversation":{"cast":{"hash":"0xroot","text":"GM","timestamp":"2026-03-04T09:00:00Z","author":{"fid":1},
			"direct_replies":[{"hash":"0xr1","text":"shipped","timestamp":"2026-03-04T09:05:00Z",
				"author":{"fid":2,"username":"bob","custody_address":"0xc","verified_addresses":{"eth_addresses":["0xe"],"primary":{"eth_address":"0xp"}}},
				"direct_replies":[{"hash":"0xr2","text":"nice","timestamp":"2026-03-04T09:06:00Z","author":{"fid":1}}]}]}}}`))
	}))
	defer srv.Close()

	n := NewNeynar(srv.URL, "", "k", srv.Client())
	root, err := n.FetchConversation(context.Background(), "0xroot", 2)
	require.NoError(t, err)
	require.Len(t, root.DirectReplies, 1)
	r1 := root.DirectReplies[0]
	assert.Equal(t, "0xp", r1.Author.VerifiedAddresses.Primary.ETHAddress)
	assert.Equal(t, []string{"0xe"}, r1.Author.VerifiedAddresses.ETHAddresses)
	require.Len(t, r1.DirectReplies, 1)
	assert.Equal(t, "0xr2", r1.DirectReplies[0].Hash)
}

func TestNeynarErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/farcaster/cast/conversation" {
			w.Write([]byte(`{"conversation":{}}`))
			return
		}
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"message":"pay"}`))
	}))
	defer srv.Close()

	n := NewNeynar(srv.URL, srv.URL, "k", srv.Client())
	_, err := n.FetchRecentPosts(context.Background(), 1, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 402")

	_, err = n.FetchConversation(context.Background(), "0x1", 2)
	assert.ErrorContains(t, err, "empty response")

	assert.ErrorContains(t, n.Submit(context.Background(), []byte{1}), "submit: status 402")
}

func TestNeynarSubmit(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/submitMessage", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		buf := make([]byte, 16)
		n, _ := r.Body.Read(buf)
		got = buf[:n]
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	n := NewNeynar("", srv.URL, "k", srv.Client())
	require.NoError(t, n.Submit(context.Background(), []byte{0x0a, 0x01, 0x02}))
	assert.Equal(t, []byte{0x0a, 0x01, 0x02}, got)
}

type recordingSubmitter struct {
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (r *recordingSubmitter) Submit(_ context.Context, msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func TestPublisher(t *testing.T) {
	s, _ := ParseSigner(testSeed)
	sub := &recordingSubmitter{}
	p := NewPublisher(5, s, sub)

	hash, err := p.Publish(context.Background(), "GM", nil)
	require.NoError(t, err)
	require.Len(t, sub.msgs, 1)
	assert.Len(t, hash, 42)

	sub.err = assert.AnError
	_, err = p.Publish(context.Background(), "GM again", nil)
	assert.ErrorIs(t, err, assert.AnError)

	_, err = p.Publish(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestHubGRPCSubmit(t *testing.T) {
	lis := bufconn.Listen(1 << 16)
	var (
		mu     sync.Mutex
		method string
		body   []byte
	)
	srv := grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
			var in []byte
			if err := stream.RecvMsg(&in); err != nil {
				return err
			}
			m, _ := grpc.MethodFromServerStream(stream)
			mu.Lock()
			method, body = m, in
			mu.Unlock()
			return stream.SendMsg(in)
		}),
	)
	go srv.Serve(lis)
	defer srv.Stop()

	hub, err := DialHub("passthrough:///bufnet", false,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	defer hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, hub.Submit(ctx, []byte{0x0a, 0x00}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/HubService/SubmitMessage", method)
	assert.Equal(t, []byte{0x0a, 0x00}, body)
}

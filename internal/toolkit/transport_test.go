package toolkit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perrors "powerexec/cli/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const okReply = `<?xml version='1.0'?><xmlservice><cmd exec='cmd' var='command' error='on'><success>+++ success</success></cmd></xmlservice>`

type fakeTransport struct {
	reply string
	err   error
	got   string
}

func (f *fakeTransport) Call(_ context.Context, xmlIn string) (string, error) {
	f.got = xmlIn
	return f.reply, f.err
}

func TestToolkitCall(t *testing.T) {
	ft := &fakeTransport{reply: okReply}
	tk := New(ft, zaptest.NewLogger(t))

	out, err := tk.Call(context.Background(), EncodeCommand("CRTLIB LIB(A)"))
	require.NoError(t, err)
	assert.Contains(t, ft.got, "CRTLIB LIB(A)")
	assert.Equal(t, "+++ success", out.Get(LabelCommand)["success"])
}

func TestToolkitCallErrors(t *testing.T) {
	t.Run("transport failure passes through", func(t *testing.T) {
		boom := perrors.New(perrors.TransportFailed, "boom")
		tk := New(&fakeTransport{err: boom}, nil)
		_, err := tk.Call(context.Background(), EncodeCommand("X"))
		assert.ErrorIs(t, err, boom)
	})
	t.Run("unparseable reply is a protocol fault", func(t *testing.T) {
		tk := New(&fakeTransport{reply: "<html/>"}, nil)
		_, err := tk.Call(context.Background(), EncodeCommand("X"))
		require.Error(t, err)
		assert.True(t, perrors.IsKind(err, perrors.ProtocolFault))
		assert.Contains(t, err.Error(), "the output is <html/>")
	})
	t.Run("long reply is cut and masked", func(t *testing.T) {
		reply := "<html>password=hunter2 " + strings.Repeat("x", 3*maxExcerpt) + "</html>"
		tk := New(&fakeTransport{reply: reply}, nil)
		_, err := tk.Call(context.Background(), EncodeCommand("X"))
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "hunter2")
		assert.Contains(t, err.Error(), "...[truncated]")
		assert.Less(t, len(err.Error()), 3*maxExcerpt)
	})
}

func TestDatabaseTransportStatement(t *testing.T) {
	tr := NewDatabaseTransport(nil)
	assert.Equal(t, "CALL QXMLSERV.iPLUGR512K(?, ?, ?)", tr.statement())

	tr.Library = "XMLSERVICE"
	tr.Placeholders = Dollar
	assert.Equal(t, "CALL XMLSERVICE.iPLUGR512K($1, $2, $3)", tr.statement())

	_, err := tr.Call(context.Background(), "<xmlservice/>")
	assert.True(t, perrors.IsKind(err, perrors.TransportFailed))
}

func TestHTTPTransport(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultCGIPath, r.URL.Path)
		assert.NoError(t, r.ParseForm())
		form = map[string]string{}
		for _, k := range []string{"db2", "uid", "pwd", "ipc", "ctl", "xmlin", "xmlout"} {
			form[k] = r.PostForm.Get(k)
		}
		_, _ = w.Write([]byte(okReply))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "", "QSECOFR", "secret")
	reply, err := tr.Call(context.Background(), "<xmlservice/>")
	require.NoError(t, err)

	assert.Equal(t, okReply, reply)
	assert.Equal(t, "*LOCAL", form["db2"])
	assert.Equal(t, "QSECOFR", form["uid"])
	assert.Equal(t, "secret", form["pwd"])
	assert.Equal(t, DefaultIPC, form["ipc"])
	assert.Equal(t, DefaultCTL, form["ctl"])
	assert.Equal(t, "<xmlservice/>", form["xmlin"])
	assert.NotEmpty(t, form["xmlout"])
}

func TestHTTPTransportStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPTransport(srv.URL+"/custom/xmlcgi", "", "", "").Call(context.Background(), "<x/>")
	require.Error(t, err)
	assert.True(t, perrors.IsKind(err, perrors.TransportFailed))
	assert.Contains(t, err.Error(), "503")
}

type toolkitServer interface {
	Call(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

type gateway struct {
	user string
}

func (g *gateway) Call(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	if u := md.Get("x-ibmi-user"); len(u) > 0 {
		g.user = u[0]
	}
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "empty request")
	}
	return wrapperspb.String(okReply), nil
}

var gatewayDesc = grpc.ServiceDesc{
	ServiceName: "xmlservice.Toolkit",
	HandlerType: (*toolkitServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Call",
		Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			in := new(wrapperspb.StringValue)
			if err := dec(in); err != nil {
				return nil, err
			}
			return srv.(toolkitServer).Call(ctx, in)
		},
	}},
}

func TestGRPCTransport(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	gw := &gateway{}
	srv.RegisterService(&gatewayDesc, gw)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	tr, err := DialGRPC(context.Background(), "passthrough:///bufnet", "QSECOFR", "secret",
		WithInsecure(),
		WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		})))
	require.NoError(t, err)
	defer tr.Close()

	reply, err := tr.Call(context.Background(), "<xmlservice/>")
	require.NoError(t, err)
	assert.Equal(t, okReply, reply)
	assert.Equal(t, "QSECOFR", gw.user)

	_, err = tr.Call(context.Background(), "")
	require.Error(t, err)
	assert.True(t, perrors.IsKind(err, perrors.TransportFailed))
	assert.Contains(t, err.Error(), "InvalidArgument")

	require.NoError(t, tr.Close())
	_, err = tr.Call(context.Background(), "<x/>")
	assert.True(t, errors.Is(err, &perrors.E{Kind: perrors.TransportFailed}))
}

package transactionstatus

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/txstatus-server/pkg/netutil"
	"github.com/code-payments/txstatus-server/pkg/txstatus/callback"
	"github.com/code-payments/txstatus-server/pkg/txstatus/notification"
)

const (
	TransactionStatusPath = "/transactionstatus"
	HealthPath            = "/healthz"

	contentTypeHeaderName            = "content-type"
	plainTextContentTypeHeaderValue  = "text/plain; charset=utf-8"
	allowHeaderName                  = "allow"
	healthyResponseBody              = "OK"
	transactionStatusAllowedWithGet  = "GET, POST"
	transactionStatusAllowedPostOnly = "POST"
)

// CallbackProcessor processes a parsed provider callback
type CallbackProcessor interface {
	Process(ctx context.Context, remoteAddress string, n notification.Notification) *callback.Result
}

// Server is the provider facing transaction status endpoint. It carries no
// session state, so it must be mounted on a mux without session or CSRF
// middleware.
type Server struct {
	log       *logrus.Entry
	processor CallbackProcessor

	trustedProxyHops      int
	acceptQueryParameters bool
	maxBodySize           int64
}

// NewTransactionStatusServer returns a new Server. Capability flags are
// resolved once, here, and never re-read while serving.
func NewTransactionStatusServer(ctx context.Context, processor CallbackProcessor, configProvider ConfigProvider) *Server {
	conf := configProvider()

	maxBodySize := int64(conf.maxBodySize.Get(ctx))
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}

	s := &Server{
		log:                   logrus.StandardLogger().WithField("type", "transactionstatus/server"),
		processor:             processor,
		trustedProxyHops:      int(conf.trustedProxyHops.Get(ctx)),
		acceptQueryParameters: conf.acceptQueryParameters.Get(ctx),
		maxBodySize:           maxBodySize,
	}

	s.log.WithFields(logrus.Fields{
		"trusted_proxy_hops":      s.trustedProxyHops,
		"accept_query_parameters": s.acceptQueryParameters,
		"max_body_size":           s.maxBodySize,
	}).Info("transaction status endpoint configured")

	return s
}

func (s *Server) transactionStatusHandler(path string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithFields(logrus.Fields{
			"path":   path,
			"method": r.Method,
		})

		switch r.Method {
		case http.MethodPost:
		case http.MethodGet:
			if s.acceptQueryParameters {
				break
			}
			fallthrough
		default:
			if s.acceptQueryParameters {
				w.Header().Set(allowHeaderName, transactionStatusAllowedWithGet)
			} else {
				w.Header().Set(allowHeaderName, transactionStatusAllowedPostOnly)
			}
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize)

		remoteAddress := netutil.GetRemoteAddress(r, s.trustedProxyHops)
		log = log.WithField("remote_address", remoteAddress)

		// The provider only inspects the body. An empty 200 response withholds
		// the ack, which it treats as a failed delivery.
		ack := func() callback.Ack {
			n, err := notification.FromRequest(r, s.acceptQueryParameters)
			if err != nil {
				log.WithError(err).Info("failure parsing callback")
				return callback.AckNone
			}

			log.WithField("fields", n.Fields()).Trace("callback received")

			return s.processor.Process(r.Context(), remoteAddress, n).Ack
		}()

		w.Header().Set(contentTypeHeaderName, plainTextContentTypeHeaderValue)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(ack)); err != nil {
			log.WithError(err).Info("failed to write body")
		}
	}
}

func (s *Server) healthHandler(path string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set(allowHeaderName, "GET, HEAD")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set(contentTypeHeaderName, plainTextContentTypeHeaderValue)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(healthyResponseBody)); err != nil {
			s.log.WithError(err).WithField("path", path).Debug("failed to write body")
		}
	}
}

func (s *Server) GetHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		TransactionStatusPath: s.transactionStatusHandler(TransactionStatusPath),
		HealthPath:            s.healthHandler(HealthPath),
	}
}

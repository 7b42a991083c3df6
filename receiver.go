package tensorwire

import (
	"sync"

	"github.com/eapache/go-resiliency/breaker"
	multierror "github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Receiver schedules concurrent decodes of independent variable messages
// into one Scope. It enforces the parallelism bound, trips a circuit breaker
// after repeated consecutive decode failures, and recovers PreconditionViolation
// escalations at the message boundary so that a hostile peer cannot take the
// process down.
//
// The Receiver does not serialize writers by variable name: callers must
// ensure that two in-flight messages never target the same destination, the
// same at-most-one-writer contract the decoder itself assumes.
type Receiver struct {
	conf   *Config
	scope  *Scope
	devCtx *DeviceContext

	brk *breaker.Breaker

	mu   sync.Mutex
	errs *multierror.Error
}

// NewReceiver constructs a Receiver decoding into scope. devCtx selects the
// destination memory space; nil means host memory.
func NewReceiver(scope *Scope, devCtx *DeviceContext, conf *Config) (*Receiver, error) {
	if conf == nil {
		conf = NewConfig()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	b := conf.Receiver.Breaker
	return &Receiver{
		conf:   conf,
		scope:  scope,
		devCtx: devCtx,
		brk:    breaker.New(b.ErrorThreshold, b.SuccessThreshold, b.Timeout),
	}, nil
}

// HandleMessages decodes every source from the channel, at most
// Receiver.Parallelism at a time, and returns once the channel is closed and
// all decodes have finished. Failed decodes do not stop the loop; their
// errors (including breaker.ErrBreakerOpen once the breaker trips) are
// aggregated into the returned error.
func (r *Receiver) HandleMessages(sources <-chan ChunkSource) error {
	g := new(errgroup.Group)
	g.SetLimit(r.conf.Receiver.Parallelism)

	for source := range sources {
		source := source
		g.Go(func() error {
			if err := r.handle(source); err != nil {
				r.mu.Lock()
				r.errs = multierror.Append(r.errs, err)
				r.mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.errs.ErrorOrNil()
	r.errs = nil
	return err
}

func (r *Receiver) handle(source ChunkSource) error {
	return r.brk.Run(func() error {
		return r.decodeOne(source)
	})
}

// decodeOne runs a single decode, converting a PreconditionViolation
// escalation into an ordinary failed-message outcome. PanicHandler, if set,
// still observes the panic value first.
func (r *Receiver) decodeOne(source ChunkSource) (err error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		if PanicHandler != nil {
			PanicHandler(p)
		}
		pv, ok := p.(PreconditionViolation)
		if !ok {
			panic(p)
		}
		err = pv
	}()

	resp := NewVariableResponse(r.scope, r.devCtx, r.conf)
	if err := resp.Parse(source); err != nil {
		Logger.Printf("receiver: rejecting message for variable %q: %v\n", resp.Metadata().Varname, err)
		return err
	}
	return nil
}

package tensorwire

// copier is the runtime-selected copy capability the payload materializer is
// written against: move one chunk into destination storage at an offset, and
// synchronize. The closed set of variants is {hostCopier, deviceCopier},
// keyed by the destination's memory-space tag.
type copier interface {
	copyChunk(dst []byte, off int, src []byte)
	wait() error
}

// hostCopier copies synchronously; the chunk handed to it is copied exactly
// once, directly into final storage.
type hostCopier struct{}

func (hostCopier) copyChunk(dst []byte, off int, src []byte) {
	copy(dst[off:], src)
}

func (hostCopier) wait() error {
	return nil
}

// deviceCopier issues host-to-device transfers through a DeviceContext's
// stream without waiting for completion of each one. wait blocks until every
// transfer issued so far has been applied; a decode targeting device memory
// must not report success before that point.
type deviceCopier struct {
	ctx *DeviceContext
}

func (d deviceCopier) copyChunk(dst []byte, off int, src []byte) {
	d.ctx.transfers <- deviceTransfer{dst: dst, off: off, src: src}
}

func (d deviceCopier) wait() error {
	return d.ctx.Wait()
}

type deviceTransfer struct {
	dst  []byte
	off  int
	src  []byte
	sync chan error // non-nil marks a synchronization point
}

// transferQueueDepth buffers the transfer stream so the decode loop isn't
// forced to context-switch on every chunk.
const transferQueueDepth = 32

// DeviceContext models an accelerator device: a memory-space tag plus an
// asynchronous transfer stream that applies host-to-device copies in issue
// order. Transfers enqueued on the stream complete asynchronously relative
// to the issuing goroutine; Wait is the explicit synchronization point.
type DeviceContext struct {
	place     Place
	transfers chan deviceTransfer
	done      chan struct{}
}

func NewDeviceContext(place Place) *DeviceContext {
	ctx := &DeviceContext{
		place:     place,
		transfers: make(chan deviceTransfer, transferQueueDepth),
		done:      make(chan struct{}),
	}
	go withRecover(ctx.run)
	return ctx
}

func (ctx *DeviceContext) run() {
	defer close(ctx.done)
	for t := range ctx.transfers {
		if t.sync != nil {
			t.sync <- nil
			continue
		}
		copy(t.dst[t.off:], t.src)
	}
}

func (ctx *DeviceContext) Place() Place {
	return ctx.place
}

// Wait blocks until all transfers issued before the call have completed.
func (ctx *DeviceContext) Wait() error {
	sync := make(chan error)
	ctx.transfers <- deviceTransfer{sync: sync}
	return <-sync
}

// Close shuts the transfer stream down after draining it. The context must
// not be used afterwards.
func (ctx *DeviceContext) Close() error {
	close(ctx.transfers)
	<-ctx.done
	return nil
}

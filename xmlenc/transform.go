package xmlenc

// Status tracks where a Transform sits in its lifecycle. A transform
// moves None -> Working (on its first Execute/PushBin call) -> Finished
// (once it has been driven with last=true and has no more output to
// give), and never moves backward.
type Status int

const (
	StatusNone Status = iota
	StatusWorking
	StatusFinished
)

// Transform wraps a registered Instance with the bookkeeping the engine
// needs to drive it through a chain: its current status and its pending
// input and produced output buffers. Single-shot (Executor) klasses get
// the accumulated input in one call; streaming (Pusher/Popper) klasses
// get each pending chunk via PushBin, and whatever PopBin yields is
// collected into the output buffer.
type Transform struct {
	Instance Instance
	Status   Status

	in  *Buffer
	out *Buffer
}

// NewTransform wraps inst, ready to be driven by a Context.
func NewTransform(inst Instance) *Transform {
	return &Transform{Instance: inst, Status: StatusNone, in: NewBuffer(), out: NewBuffer()}
}

// Href returns the algorithm URI of the wrapped instance's klass.
func (t *Transform) Href() string { return t.Instance.Klass().Href }

// Execute drives the transform with a new chunk of input, honoring the
// single-shot Execute vs streaming PushBin/PopBin split and the
// Working -> Finished transition.
//
// The transition law: an Executor stage keeps its input buffered across
// last=false calls; the last=true call hands it the whole accumulated
// input, clears the input buffer and moves the stage to StatusFinished.
// A Pusher stage is handed its pending input on every call and finishes
// on a last=true call, or earlier as soon as PopBin reports final.
//
// A Finished transform tolerates further calls as long as no new input
// is waiting to be consumed: it stays Finished and returns nil. Only a
// call that finds pending input on an already-Finished transform is an
// error, since there is no further processing step left to consume it.
func (t *Transform) Execute(last bool) error {
	if t.Status == StatusFinished {
		if t.in.Empty() {
			return nil
		}
		return newError(KindInvalidStatus, "Transform.Execute", "transform already finished")
	}
	t.Status = StatusWorking

	if exec, ok := t.Instance.(Executor); ok {
		out, err := exec.Execute(t.in, last)
		if err != nil {
			return err
		}
		if out != nil {
			t.out.Append(out.Bytes())
		}
		if last {
			t.in.Reset()
			t.Status = StatusFinished
		}
		return nil
	}

	if pusher, ok := t.Instance.(Pusher); ok {
		if err := pusher.PushBin(t.in.Bytes(), last); err != nil {
			return err
		}
		t.in.Reset()
		if popper, ok := t.Instance.(Popper); ok {
			for {
				data, final, err := popper.PopBin()
				if err != nil {
					return err
				}
				if len(data) > 0 {
					t.out.Append(data)
				}
				if final {
					t.Status = StatusFinished
					return nil
				}
				if len(data) == 0 {
					break
				}
			}
		}
		if last {
			t.Status = StatusFinished
		}
		return nil
	}

	return newError(KindInvalidStatus, "Transform.Execute", "instance implements neither Executor nor Pusher")
}

// PushInput feeds additional bytes into the transform's pending input
// buffer without executing it.
func (t *Transform) PushInput(data []byte) {
	t.in.Append(data)
}

// Output returns everything the transform has produced so far.
func (t *Transform) Output() *Buffer { return t.out }

// DrainOutput returns and clears the accumulated output buffer, for
// callers that want to forward bytes downstream rather than hold them.
func (t *Transform) DrainOutput() []byte {
	b := t.out.Bytes()
	cp := make([]byte, len(b))
	copy(cp, b)
	t.out.Reset()
	return cp
}

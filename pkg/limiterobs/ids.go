package limiterobs

import (
	"sync"

	"github.com/sony/sonyflake/v2"
)

// instanceIDGen is process-wide: one Sonyflake generator backs every
// limiter in this process, since the ID it produces is used purely for
// log/trace correlation, not for any store-side identity (the semaphore
// protocol carries no per-acquisition token).
var (
	instanceIDOnce sync.Once
	instanceID     string
)

// InstanceID returns a short, process-wide, time-ordered identifier
// generated once per process with Sonyflake. It has no bearing on limiter correctness;
// it exists so that log lines and spans emitted by concurrent acquirers on
// the same host can be told apart.
func InstanceID() string {
	instanceIDOnce.Do(func() {
		gen, err := sonyflake.New(sonyflake.Settings{})
		if err != nil {
			// Sonyflake only fails to construct on a bad MachineID callback
			// or a StartTime in the future; neither applies to the zero
			// Settings value, but degrade to a fixed marker rather than
			// panic from an observability helper.
			instanceID = "unknown"
			return
		}
		id, err := gen.NextID()
		if err != nil {
			instanceID = "unknown"
			return
		}
		instanceID = formatID(id)
	})
	return instanceID
}

func formatID(id int64) string {
	const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"
	if id == 0 {
		return "0"
	}
	buf := make([]byte, 0, 13)
	for id > 0 {
		buf = append(buf, base36[id%36])
		id /= 36
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

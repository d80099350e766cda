package config

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/partitiond/pkg/lease"
)

// checkpointFrequencyDecodeHook decodes a string such as "every_batch",
// "every_n_batches:10", or "every_interval:30s" into a CheckpointFrequency.
func checkpointFrequencyDecodeHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(CheckpointFrequency{}) {
			return data, nil
		}
		s, ok := data.(string)
		if !ok {
			return data, nil
		}
		parts := strings.SplitN(s, ":", 2)
		switch parts[0] {
		case "every_batch", "":
			return CheckpointFrequency{Policy: lease.EveryBatch()}, nil
		case "manual":
			return CheckpointFrequency{Policy: lease.Manual()}, nil
		case "every_n_batches":
			if len(parts) != 2 {
				return nil, fmt.Errorf("every_n_batches requires a count, e.g. every_n_batches:10")
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				return nil, fmt.Errorf("invalid every_n_batches count %q: %w", parts[1], err)
			}
			return CheckpointFrequency{Policy: lease.EveryNBatches(n)}, nil
		case "every_interval":
			if len(parts) != 2 {
				return nil, fmt.Errorf("every_interval requires a duration, e.g. every_interval:30s")
			}
			d, err := time.ParseDuration(parts[1])
			if err != nil {
				return nil, fmt.Errorf("invalid every_interval duration %q: %w", parts[1], err)
			}
			return CheckpointFrequency{Policy: lease.EveryInterval(d)}, nil
		default:
			return nil, fmt.Errorf("unrecognized checkpoint frequency %q", s)
		}
	}
}

func newBytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

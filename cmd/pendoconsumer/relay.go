package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"

	"github.com/shortontech/pendoconsumer/internal/consumer"
)

// command is one NDJSON line on stdin:
//
//	{"track":"screen_view","params":{"screen":"home","count":3}}
//	{"set":"plan","value":"pro"}
//	{"set":"plan","value":null}
type command struct {
	Track  *string        `json:"track,omitempty"`
	Params map[string]any `json:"params,omitempty"`
	Set    *string        `json:"set,omitempty"`
	Value  *string        `json:"value,omitempty"`
}

type relayStats struct {
	Relayed int
	Failed  int
}

var errUnknownCommand = errors.New("command needs exactly one of track or set")

func decodeCommand(line []byte) (command, error) {
	var cmd command
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&cmd); err != nil {
		return command{}, err
	}
	return cmd, nil
}

// toParameters maps decoded JSON values onto parameter values. Nested values
// and nulls are dropped.
func toParameters(raw map[string]any, logger hclog.Logger) map[string]consumer.ParameterValue {
	if raw == nil {
		return nil
	}
	params := make(map[string]consumer.ParameterValue, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			params[k] = consumer.String(v)
		case bool:
			params[k] = consumer.Bool(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				params[k] = consumer.Int(n)
			} else if f, err := v.Float64(); err == nil {
				params[k] = consumer.Float(f)
			}
		default:
			logger.Warn("skipping unsupported parameter", "key", k, "type", fmt.Sprintf("%T", v))
		}
	}
	return params
}

func apply(a consumer.AnalyticsConsumer, cmd command, logger hclog.Logger) error {
	switch {
	case cmd.Track != nil && cmd.Set != nil:
		return errUnknownCommand
	case cmd.Track != nil:
		name := a.TrimEventName(consumer.EventName(*cmd.Track))
		return a.TrackEvent(name, toParameters(cmd.Params, logger))
	case cmd.Set != nil:
		key := a.TrimUserPropertyName(consumer.UserPropertyName(*cmd.Set))
		return a.SetUserProperty(key, cmd.Value)
	}
	return errUnknownCommand
}

// relay applies commands from in until EOF or ctx is done.
func relay(ctx context.Context, a consumer.AnalyticsConsumer, in io.Reader, logger hclog.Logger) (relayStats, error) {
	var stats relayStats
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			select {
			case lines <- append([]byte(nil), line...):
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return stats, nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return stats, err
				default:
					return stats, nil
				}
			}
			cmd, err := decodeCommand(line)
			if err == nil {
				err = apply(a, cmd, logger)
			}
			if err != nil {
				stats.Failed++
				logger.Warn("command failed", "line", string(line), "error", err)
				continue
			}
			stats.Relayed++
		}
	}
}

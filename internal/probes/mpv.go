package probes

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"simklscrobbler/models"
)

// mpvWrapperTable maps process names that speak the MPV IPC protocol (MPV
// itself plus front-ends built on it) to the shared implementation, per
// spec.md §4.3's "wrapper table" requirement.
var mpvWrapperTable = []string{
	"mpv", "mpv.exe",
	"celluloid",
	"mpv.net", "mpvnet",
	"smplayer",
}

type mpvCommandReply struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

type mpvProbe struct {
	socketPath string
	log        *throttledLogger
}

func newMPVProbe(socketPath string, log *throttledLogger) *mpvProbe {
	return &mpvProbe{socketPath: socketPath, log: log}
}

func (p *mpvProbe) Matches(processName string) bool {
	return containsAnyFold(processName, mpvWrapperTable)
}

func (p *mpvProbe) Probe(ctx context.Context, processName string) (*models.ProbeResult, error) {
	if p.socketPath == "" {
		return nil, fmt.Errorf("mpv probe: no ipc socket configured")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", p.socketPath)
	if err != nil {
		p.log.logf(processName, "mpv probe: dial %s failed: %v", p.socketPath, err)
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	reader := bufio.NewReader(conn)

	position, err := p.getFloatProperty(conn, reader, "time-pos")
	if err != nil {
		return nil, err
	}
	duration, err := p.getFloatProperty(conn, reader, "duration")
	if err != nil {
		return nil, err
	}
	path, err := p.getStringProperty(conn, reader, "path")
	if err != nil {
		return nil, err
	}
	paused, err := p.getBoolProperty(conn, reader, "pause")
	if err != nil {
		return nil, err
	}

	state := models.StatePlaying
	if paused {
		state = models.StatePaused
	}

	return &models.ProbeResult{
		PositionSeconds: position,
		DurationSeconds: duration,
		PlayState:       state,
		HasPlayState:    true,
		Filepath:        path,
	}, nil
}

func (p *mpvProbe) getFloatProperty(conn net.Conn, reader *bufio.Reader, name string) (float64, error) {
	raw, err := p.sendCommand(conn, reader, name)
	if err != nil {
		return 0, err
	}
	var v float64
	_ = json.Unmarshal(raw, &v)
	return v, nil
}

func (p *mpvProbe) getStringProperty(conn net.Conn, reader *bufio.Reader, name string) (string, error) {
	raw, err := p.sendCommand(conn, reader, name)
	if err != nil {
		return "", err
	}
	var v string
	_ = json.Unmarshal(raw, &v)
	return v, nil
}

func (p *mpvProbe) getBoolProperty(conn net.Conn, reader *bufio.Reader, name string) (bool, error) {
	raw, err := p.sendCommand(conn, reader, name)
	if err != nil {
		return false, err
	}
	var v bool
	_ = json.Unmarshal(raw, &v)
	return v, nil
}

func (p *mpvProbe) sendCommand(conn net.Conn, reader *bufio.Reader, property string) (json.RawMessage, error) {
	cmd := struct {
		Command []string `json:"command"`
	}{Command: []string{"get_property", property}}

	raw, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(raw, '\n')); err != nil {
		return nil, fmt.Errorf("write mpv command %s: %w", property, err)
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read mpv reply for %s: %w", property, err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var reply mpvCommandReply
		if err := json.Unmarshal([]byte(line), &reply); err != nil {
			continue
		}
		if reply.Data == nil && reply.Error == "" {
			// An event notification, not our command's reply; keep reading.
			continue
		}
		if reply.Error != "" && reply.Error != "success" {
			return nil, fmt.Errorf("mpv get_property %s: %s", property, reply.Error)
		}
		return reply.Data, nil
	}
}

package ipc

import (
	"testing"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/vaultconfig"
	"vaultlauncher/internal/worker"
)

func TestPlanConfigUpdateKeepsUnsetFields(t *testing.T) {
	snap := worker.Snapshot{Config: worker.ConfigSnapshot{
		Launcher: vaultconfig.LauncherConfig{Hostname: "vault.lan", Port: 8000, Local: true, CacheSize: 512},
		FFmpeg:   config.FFmpeg{FFmpegPath: "/usr/bin/ffmpeg", FFprobePath: "/usr/bin/ffprobe", VideoCodec: "libx264"},
	}}
	port := 9000
	debug := true
	plan, err := planConfigUpdate(snap, UpdateConfigRequest{Port: &port, Debug: &debug})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan.needsVault || len(plan.messages) != 2 {
		t.Fatalf("unexpected plan %+v", plan)
	}
	hostPort, ok := plan.messages[0].(worker.UpdateHostPort)
	if !ok || hostPort.Hostname != "vault.lan" || hostPort.Port != 9000 || !hostPort.Local {
		t.Fatalf("unexpected host update %#v", plan.messages[0])
	}
	other, ok := plan.messages[1].(worker.UpdateOther)
	if !ok || other.CacheSize != 512 || !other.Debug {
		t.Fatalf("unexpected other update %#v", plan.messages[1])
	}
}

func TestPlanConfigUpdateRejectsInvalidValues(t *testing.T) {
	snap := worker.Snapshot{}
	zero := 0
	enable := true
	empty := ""
	tests := []struct {
		name string
		req  UpdateConfigRequest
	}{
		{name: "port", req: UpdateConfigRequest{Port: &zero}},
		{name: "tls without files", req: UpdateConfigRequest{TLS: &enable}},
		{name: "empty ffmpeg", req: UpdateConfigRequest{FFmpegPath: &empty}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := planConfigUpdate(snap, tt.req); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestPlanConfigUpdateDisablesTLS(t *testing.T) {
	snap := worker.Snapshot{Config: worker.ConfigSnapshot{
		Launcher: vaultconfig.LauncherConfig{Port: 8000, SSLCert: "/c.pem", SSLKey: "/k.pem"},
	}}
	disable := false
	plan, err := planConfigUpdate(snap, UpdateConfigRequest{TLS: &disable})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	msg, ok := plan.messages[0].(worker.UpdateTLS)
	if !ok || msg.Enabled {
		t.Fatalf("expected tls disabled, got %#v", plan.messages[0])
	}
}

func TestParseKeyIgnoresGrouping(t *testing.T) {
	key, err := parseKey("00ff-10 20")
	if err != nil {
		t.Fatalf("parseKey: %v", err)
	}
	if len(key) != 4 || key[1] != 0xff {
		t.Fatalf("unexpected key %x", key)
	}
	if _, err := parseKey(""); err == nil {
		t.Fatal("empty key should fail")
	}
}

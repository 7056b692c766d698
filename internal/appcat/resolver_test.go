package appcat

import "testing"

func newTestResolver() *Resolver {
	return NewResolver("appwatch.exe", "AppWatch")
}

func TestResolveCatalogProcesses(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		process string
		want    string
	}{
		{"chrome.exe", "chrome"},
		{"Chrome.exe", "chrome"},
		{"MSEDGE.EXE", "edge"},
		{"Code.exe", "vscode"},
		{"Discord.exe", "discord"},
		{"pwsh.exe", "powershell"},
		{"steamwebhelper.exe", "steam"},
	}

	for _, tt := range tests {
		id, ok := r.Resolve(tt.process, "")
		if !ok {
			t.Fatalf("Resolve(%q) not ok, want %q", tt.process, tt.want)
		}
		if id != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.process, id, tt.want)
		}
	}
}

func TestResolveDynamicIdentity(t *testing.T) {
	r := newTestResolver()

	id, ok := r.Resolve("MyCustomTool.exe", "")
	if !ok {
		t.Fatal("Resolve(MyCustomTool.exe) not ok")
	}
	if id != "proc:mycustomtool.exe" {
		t.Errorf("dynamic id = %q, want %q", id, "proc:mycustomtool.exe")
	}

	app, ok := r.App(id)
	if !ok {
		t.Fatalf("App(%q) not found after registration", id)
	}
	if app.Category != CategoryOther {
		t.Errorf("dynamic category = %q, want %q", app.Category, CategoryOther)
	}
	if app.DisplayName != "Mycustomtool" {
		t.Errorf("dynamic display name = %q, want %q", app.DisplayName, "Mycustomtool")
	}

	// Same raw input must yield the same identity.
	again, ok := r.Resolve("mycustomtool.exe", "")
	if !ok || again != id {
		t.Errorf("second Resolve = (%q, %v), want (%q, true)", again, ok, id)
	}
}

func TestResolveDisplayNameSeparators(t *testing.T) {
	r := newTestResolver()

	id, _ := r.Resolve("my_custom-tool.exe", "")
	app, ok := r.App(id)
	if !ok {
		t.Fatalf("App(%q) not found", id)
	}
	if app.DisplayName != "My Custom Tool" {
		t.Errorf("display name = %q, want %q", app.DisplayName, "My Custom Tool")
	}
}

func TestResolveSelfExclusion(t *testing.T) {
	r := newTestResolver()

	if _, ok := r.Resolve("appwatch.exe", ""); ok {
		t.Error("own process name should not resolve")
	}
	if _, ok := r.Resolve("chrome.exe", "AppWatch Dashboard - Google Chrome"); ok {
		t.Error("window title containing product name should not resolve")
	}
	if _, ok := r.Resolve("", ""); ok {
		t.Error("empty process name should not resolve")
	}
}

func TestResolveNotification(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		raw  string
		want string
	}{
		{"com.squirrel.Discord.Discord", "discord"},
		{"Microsoft.Windows.Teams", "teams"},
		{"5319275A.WhatsAppDesktop_cv1g1gvanyjgm!App", "whatsapp"},
		{"Spotify Music", "spotify"},
		{"some.unknown.publisher", OtherAppID},
		{"", OtherAppID},
	}

	for _, tt := range tests {
		if got := r.ResolveNotification(tt.raw); got != tt.want {
			t.Errorf("ResolveNotification(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestAppsFilter(t *testing.T) {
	r := newTestResolver()
	r.Resolve("mycustomtool.exe", "")

	used := map[string]bool{"chrome": true, "proc:mycustomtool.exe": true}
	apps := r.Apps(func(id string) bool { return used[id] })
	if len(apps) != 2 {
		t.Fatalf("Apps filter returned %d entries, want 2", len(apps))
	}
}

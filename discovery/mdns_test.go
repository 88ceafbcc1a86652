package discovery

import (
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"

	"github.com/lanshared/lanshared/models"
)

func testSelf() models.PeerId {
	return models.PeerId{Hostname: "alice-laptop", UUID: uuid.MustParse("11111111-1111-1111-1111-111111111111")}
}

func TestStartBroadcasterBuildsExpectedTXTRecords(t *testing.T) {
	var (
		gotInstance string
		gotService  string
		gotDomain   string
		gotPort     int
		gotTXT      []string
	)

	cfg := Config{
		Self:          testSelf(),
		ListeningPort: 9999,
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			gotInstance = instance
			gotService = service
			gotDomain = domain
			gotPort = port
			gotTXT = append([]string(nil), text...)
			return nil, nil
		},
	}

	broadcaster, err := StartBroadcaster(cfg)
	if err != nil {
		t.Fatalf("StartBroadcaster failed: %v", err)
	}
	if broadcaster == nil {
		t.Fatalf("expected broadcaster instance")
	}

	if gotInstance != testSelf().String() {
		t.Fatalf("unexpected instance name: %q", gotInstance)
	}
	if gotService != DefaultService {
		t.Fatalf("unexpected service: %q", gotService)
	}
	if gotDomain != DefaultDomain {
		t.Fatalf("unexpected domain: %q", gotDomain)
	}
	if gotPort != 9999 {
		t.Fatalf("unexpected port: %d", gotPort)
	}
	assertContainsTXT(t, gotTXT, "uuid="+testSelf().UUID.String())
	assertContainsTXT(t, gotTXT, "hostname=alice-laptop")
}

func TestStartBroadcasterRequiresSelf(t *testing.T) {
	cfg := Config{
		ListeningPort: 1234,
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			return nil, nil
		},
	}
	if _, err := StartBroadcaster(cfg); err == nil {
		t.Fatalf("expected error for missing self identity")
	}
}

func assertContainsTXT(t *testing.T, txt []string, want string) {
	t.Helper()
	for _, entry := range txt {
		if entry == want {
			return
		}
	}
	t.Fatalf("expected TXT records %v to contain %q", txt, want)
}

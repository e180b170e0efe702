package dlna

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aosaki/dlnacast/tool"
)

const (
	avTransportService       = "urn:schemas-upnp-org:service:AVTransport:1"
	connectionManagerService = "urn:schemas-upnp-org:service:ConnectionManager:1"
)

// soapArg is one ordered action argument. Values are inserted verbatim unless
// Escape is set; URIs and embedded DIDL documents need XML-entity escaping,
// plain tokens like Speed or InstanceID must not be touched.
type soapArg struct {
	Name   string
	Value  string
	Escape bool
}

var xmlEntityEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// buildEnvelope assembles a literal SOAP 1.1 envelope for a UPnP action.
func buildEnvelope(service, action string, args []soapArg) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` + "\n")
	b.WriteString("  <s:Body>\n")
	fmt.Fprintf(&b, `    <u:%s xmlns:u="%s">`+"\n", action, service)
	for _, arg := range args {
		value := arg.Value
		if arg.Escape {
			value = xmlEntityEscaper.Replace(value)
		}
		fmt.Fprintf(&b, "      <%s>%s</%s>\n", arg.Name, value, arg.Name)
	}
	fmt.Fprintf(&b, "    </u:%s>\n", action)
	b.WriteString("  </s:Body>\n")
	b.WriteString("</s:Envelope>")
	return b.Bytes()
}

// postSOAP sends one UPnP action and returns the raw response body. Any
// transport failure or non-200 status is logged and surfaced as an error;
// callers convert it to their nil/false sentinels.
func postSOAP(endpoint, service, action string, args []soapArg, timeout time.Duration) (string, error) {
	envelope := buildEnvelope(service, action, args)

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(envelope))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", fmt.Sprintf("%q", service+"#"+action))

	client := tool.GetHTTPClient()
	ctx, cancel := contextWithTimeout(timeout)
	defer cancel()
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			tool.DefaultLogger.Debugf("Failed to close SOAP response body: %v", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("SOAP action %s failed: %d - %s", action, resp.StatusCode, truncate(string(body), 200))
	}
	return string(body), nil
}

// extractElementText returns the character data of the first element whose
// local name matches, regardless of namespace. UPnP responses are
// inconsistently namespaced across vendors, so matching must stay lenient.
func extractElementText(doc, localName string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(doc))
	inTarget := false
	var text strings.Builder
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == localName {
				inTarget = true
			}
		case xml.CharData:
			if inTarget {
				text.Write(t)
			}
		case xml.EndElement:
			if inTarget && t.Name.Local == localName {
				return text.String(), nil
			}
		}
	}
}

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultSOAPTimeout
	}
	return context.WithTimeout(context.Background(), d)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package template

import (
	"fmt"
	"html"
	"time"
)

func AlertTemplate(title, body string, at time.Time) string {
	return fmt.Sprintf(`
		<html>
        <body>
            <h2>%s</h2>
            <p>%s</p>
            <p>Detected at %s UTC.</p>
            <br>
            <p>Open the plant monitor dashboard to review the readings and thresholds.</p>
        </body>
        </html>
		`, html.EscapeString(title), html.EscapeString(body), at.UTC().Format("2006-01-02 15:04:05"))
}

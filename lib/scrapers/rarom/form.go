package rarom

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// every piece of upstream markup the scraper is coupled to, kept in
// one table so portal drift is a one-line change
const (
	formName           = "frm"
	vinField           = "nr_id"
	captchaField       = "verif_cod"
	captchaFieldLegacy = "antirobot"
	submitField        = "trimite"
	submitLabel        = "Caută"
	captchaImageId     = "imgVerf"
	resultContainerId  = "rezbgcolor"
	rejectedMarker     = "codul de verificare a fost copiat incorect"
	noRecordMarker     = "nu a fost găsită nicio înregistrare"
	validUntilMarker   = "valabilă până la"
	legacyDateMarker   = "Data expirării"
)

// BuildForm extracts the query form from a landing page and returns
// the absolute submission URL plus every input field, with the VIN and
// captcha fields overridden. Pure transform, no network I/O.
func BuildForm(doc *goquery.Document, pageUrl *url.URL, vin, captcha string) (string, map[string]string, error) {
	form := doc.Find(fmt.Sprintf("form[name=%s]", formName)).First()
	if form.Length() == 0 {
		form = doc.Find("form").First()
	}
	if form.Length() == 0 {
		return "", nil, ErrFormNotFound
	}

	postUrl := resolveAction(pageUrl, form.AttrOr("action", ""))

	fields := map[string]string{}
	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name == "" {
			return
		}
		fields[name] = input.AttrOr("value", "")
	})

	fields[vinField] = strings.ToUpper(vin)

	// the portal renamed its captcha field at some point; honor the
	// legacy name only when the current one is absent
	if _, ok := fields[captchaField]; ok {
		fields[captchaField] = captcha
	} else if _, ok := fields[captchaFieldLegacy]; ok {
		fields[captchaFieldLegacy] = captcha
	} else {
		fields[captchaField] = captcha
	}

	// an empty submit value makes the server treat the POST as a page
	// load rather than a genuine search
	if value, ok := fields[submitField]; ok && value == "" {
		fields[submitField] = submitLabel
	}

	return postUrl, fields, nil
}

func resolveAction(pageUrl *url.URL, action string) string {
	if strings.HasPrefix(action, "http") {
		return action
	}

	action, _, _ = strings.Cut(action, "#")
	if action == "" {
		return pageUrl.String()
	}
	if strings.HasPrefix(action, "/") {
		return fmt.Sprintf("%s://%s%s", pageUrl.Scheme, pageUrl.Host, action)
	}
	return pageDir(pageUrl) + "/" + action
}

// directory of the landing page URL, without a trailing slash
func pageDir(pageUrl *url.URL) string {
	idx := strings.LastIndex(pageUrl.Path, "/")
	if idx <= 0 {
		return fmt.Sprintf("%s://%s", pageUrl.Scheme, pageUrl.Host)
	}
	return fmt.Sprintf("%s://%s%s", pageUrl.Scheme, pageUrl.Host, pageUrl.Path[:idx])
}

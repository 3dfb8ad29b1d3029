package scheduleresponse

import (
	"fmt"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronos-cal/chronos/calendar"
	"github.com/chronos-cal/chronos/freebusy"
)

var (
	queryFrom  = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	queryUntil = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
)

func testQuery() Query {
	return Query{Organizer: "mailto:viewer@example.com", From: queryFrom, Until: queryUntil}
}

func busyTime(start, end time.Time) freebusy.FreeBusyTime {
	return freebusy.FreeBusyTime{Type: freebusy.FbBusy, Start: start, End: end}
}

func TestWriteSingleRecipient(t *testing.T) {
	alice := calendar.Attendee{Entity: 2, URI: "mailto:alice@example.com", CN: "Alice", Internal: true}
	results := map[calendar.Attendee]freebusy.Result{
		alice: {Times: []freebusy.FreeBusyTime{
			busyTime(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)),
		}},
	}

	out, err := Write(testQuery(), results)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(out))

	responses := doc.FindElements("//C:response")
	require.Len(t, responses, 1)
	href := responses[0].FindElement("C:recipient/D:href")
	require.NotNil(t, href)
	assert.Equal(t, "mailto:alice@example.com", href.Text())

	status := responses[0].FindElement("C:request-status")
	require.NotNil(t, status)
	assert.Equal(t, "2.0;Success", status.Text())

	data := responses[0].FindElement("C:calendar-data")
	require.NotNil(t, data)
	assert.Contains(t, data.Text(), "BEGIN:VFREEBUSY")
	assert.Contains(t, data.Text(), "METHOD:REPLY")
	assert.Contains(t, data.Text(), "FREEBUSY;FBTYPE=BUSY:20260310T090000Z/20260310T100000Z")
	assert.Contains(t, data.Text(), "ORGANIZER:mailto:viewer@example.com")
}

func TestWriteOrdersRecipients(t *testing.T) {
	results := map[calendar.Attendee]freebusy.Result{
		{URI: "mailto:zoe@example.com"}:   {Times: []freebusy.FreeBusyTime{}},
		{URI: "mailto:alice@example.com"}: {Times: []freebusy.FreeBusyTime{}},
		{URI: "mailto:mike@example.com"}:  {Times: []freebusy.FreeBusyTime{}},
	}

	out, err := Write(testQuery(), results)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(out))

	var hrefs []string
	for _, el := range doc.FindElements("//C:recipient/D:href") {
		hrefs = append(hrefs, el.Text())
	}
	assert.Equal(t, []string{
		"mailto:alice@example.com",
		"mailto:mike@example.com",
		"mailto:zoe@example.com",
	}, hrefs)
}

func TestWriteStatusCodes(t *testing.T) {
	unavailable := calendar.Attendee{URI: "mailto:gone@example.com"}
	restricted := calendar.Attendee{URI: "mailto:hidden@example.com"}
	results := map[calendar.Attendee]freebusy.Result{
		unavailable: {Warnings: []error{fmt.Errorf("wrapped: %w", freebusy.ErrFreeBusyUnavailable)}},
		restricted:  {Warnings: []error{fmt.Errorf("wrapped: %w", freebusy.ErrVisibilityRestricted)}},
	}

	out, err := Write(testQuery(), results)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(out))

	statusByHref := make(map[string]string)
	for _, response := range doc.FindElements("//C:response") {
		href := response.FindElement("C:recipient/D:href").Text()
		statusByHref[href] = response.FindElement("C:request-status").Text()
	}
	assert.Equal(t, "3.7;Invalid calendar user", statusByHref["mailto:gone@example.com"])
	assert.Equal(t, "3.8;No authority", statusByHref["mailto:hidden@example.com"])

	// Failed recipients carry no calendar data.
	assert.Empty(t, doc.FindElements("//C:calendar-data"))
}

func TestVFreeBusy(t *testing.T) {
	alice := calendar.Attendee{URI: "mailto:alice@example.com", CN: "Alice"}
	times := []freebusy.FreeBusyTime{
		busyTime(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)),
		{Type: freebusy.FbBusyTentative,
			Start: time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)},
	}

	cal, err := VFreeBusy(testQuery(), alice, times)
	require.NoError(t, err)

	require.Len(t, cal.Children, 1)
	comp := cal.Children[0]
	assert.Equal(t, "VFREEBUSY", comp.Name)
	assert.Equal(t, "20260309T000000Z", comp.Props.Get("DTSTART").Value)
	assert.Equal(t, "20260314T000000Z", comp.Props.Get("DTEND").Value)
	assert.NotEmpty(t, comp.Props.Get("UID").Value)

	attendee := comp.Props.Get("ATTENDEE")
	require.NotNil(t, attendee)
	assert.Equal(t, "mailto:alice@example.com", attendee.Value)
	assert.Equal(t, "Alice", attendee.Params.Get("CN"))

	periods := comp.Props.Values("FREEBUSY")
	require.Len(t, periods, 2)
	assert.Equal(t, "BUSY", periods[0].Params.Get("FBTYPE"))
	assert.Equal(t, "20260310T090000Z/20260310T100000Z", periods[0].Value)
	assert.Equal(t, "BUSY-TENTATIVE", periods[1].Params.Get("FBTYPE"))
}

func TestVFreeBusyRejectsInvertedWindow(t *testing.T) {
	_, err := VFreeBusy(Query{From: queryUntil, Until: queryFrom}, calendar.Attendee{}, nil)
	assert.Error(t, err)
}

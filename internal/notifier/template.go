package notifier

// digestTemplate renders one HTML email per batch of newly observed
// listings. Kept intentionally plain: it is the one piece of
// user-facing HTML the system produces.
const digestTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>{{.ListingCount}} nieuwe woning(en) voor "{{.ProfileName}}"</h2>
  {{range .Listings}}
  <table style="margin-bottom: 16px; border-bottom: 1px solid #ddd; padding-bottom: 8px;">
    <tr>
      <td style="padding-right: 12px;">
        {{if .ImageURL}}<img src="{{.ImageURL}}" width="140" alt="">{{end}}
      </td>
      <td>
        <div><a href="{{.URL}}">{{.Street}}</a></div>
        <div>{{.PostalCode}} {{.City}}</div>
        <div>{{.Price}} &middot; {{.FloorArea}} &middot; {{.Bedrooms}} slaapkamer(s)</div>
        <div>Energielabel: {{.EnergyLabel}}</div>
        <div style="color: #777;">{{.ListedSinceText}}</div>
      </td>
    </tr>
  </table>
  {{end}}
</body>
</html>
`

package templates

import (
	"fmt"
	"html"
)

// RenderInvitationEmail generates branded HTML for a campaign invitation.
// The campaign name is HTML-escaped before display; the link is produced by
// the caller and never contains user input.
func RenderInvitationEmail(campaignName, link string) string {
	safeName := html.EscapeString(campaignName)

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>You're invited to %s</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f6f8; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #11998e 0%%, #38ef7d 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #374151; line-height: 1.6; font-size: 15px; }
    .button { display: inline-block; margin: 24px 0; padding: 12px 28px; background-color: #11998e; color: #fff; text-decoration: none; border-radius: 6px; font-weight: 600; }
    .footer { padding: 30px; text-align: center; color: #9ca3af; font-size: 12px; border-top: 1px solid #e5e7eb; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>You're invited to join %s</h1>
    </div>
    <div class="content">
      <p>You have been invited to join the savings campaign <strong>%s</strong>.</p>
      <p>Accept the invitation to lock in your payout month. Invitations expire after 30 days.</p>
      <p style="text-align: center;"><a class="button" href="%s">View Invitation</a></p>
      <p>If you weren't expecting this, you can safely ignore this email.</p>
    </div>
    <div class="footer">
      <p>&copy; Benovo</p>
    </div>
  </div>
</body>
</html>`, safeName, safeName, safeName, link)
}

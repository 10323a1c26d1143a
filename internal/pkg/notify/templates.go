package notify

import (
	"html"
	"strings"

	"github.com/ManuelReschke/fitsync/app/models"
)

// Placeholder names usable in notification templates as {{name}}.
const (
	VarPlanName         = "plan_name"
	VarAmount           = "amount"
	VarContentName      = "content_name"
	VarEndDate          = "end_date"
	VarOrganizationName = "organization_name"
	VarSeats            = "seats"
	VarAdminURL         = "admin_url"
)

// Vars holds placeholder values for one notification.
type Vars map[string]string

// Content is a rendered notification.
type Content struct {
	Title     string
	Subject   string
	Body      string
	EmailHTML string
}

// defaultContent is used when no active template is stored for a type.
var defaultContent = map[string]Content{
	"purchase_subscription": {
		Title: "Your {{plan_name}} subscription is active",
		Body:  "Thanks for subscribing! Your {{plan_name}} plan is now active.",
	},
	"welcome_first_purchase": {
		Title: "Welcome aboard",
		Body:  "Thanks for your first purchase. We're glad you're here.",
	},
	"subscription_canceled": {
		Title: "Your subscription was canceled",
		Body:  "Your {{plan_name}} subscription was canceled. You keep access until {{end_date}}.",
	},
	"subscription_renewed": {
		Title: "Your subscription was renewed",
		Body:  "Your {{plan_name}} subscription was renewed. We charged {{amount}}.",
	},
	"payment_failed": {
		Title: "Payment failed",
		Body:  "We couldn't charge {{amount}} for your {{plan_name}} subscription. Please update your payment method.",
	},
	"purchase_workout": {
		Title: "Workout unlocked",
		Body:  "You bought {{content_name}} for {{amount}}. Enjoy your workout!",
	},
	"purchase_program": {
		Title: "Program unlocked",
		Body:  "You bought {{content_name}} for {{amount}}. Your program is ready.",
	},
	"purchase_shop": {
		Title: "Order confirmed",
		Body:  "Thanks for ordering {{content_name}} ({{amount}}).",
	},
	"purchase_ritual": {
		Title: "Ritual booked",
		Body:  "Your ritual on {{end_date}} is booked ({{amount}}).",
	},
	"corporate_subscription": {
		Title: "{{organization_name}} is on {{plan_name}}",
		Body:  "Your corporate plan for {{organization_name}} is active with {{seats}} seats. Manage members at {{admin_url}}.",
	},
}

var genericContent = Content{
	Title: "Billing update",
	Body:  "There is an update to your billing.",
}

// Render substitutes vars into a stored template, or into the built-in copy
// when tmpl is nil or inactive.
func Render(kind string, tmpl *models.NotificationTemplate, vars Vars) Content {
	var c Content
	if tmpl != nil && tmpl.IsActive {
		c = Content{Title: tmpl.Title, Subject: tmpl.Subject, Body: tmpl.Body, EmailHTML: tmpl.EmailHTML}
	} else if d, ok := defaultContent[kind]; ok {
		c = d
	} else {
		c = genericContent
	}

	if c.Subject == "" {
		c.Subject = c.Title
	}
	if c.EmailHTML == "" {
		c.EmailHTML = "<p>" + c.Body + "</p>"
	}

	plain := replacer(vars, nil)
	line := replacer(vars, singleLine)
	return Content{
		Title:     line.Replace(c.Title),
		Subject:   line.Replace(c.Subject),
		Body:      plain.Replace(c.Body),
		EmailHTML: replacer(vars, html.EscapeString).Replace(c.EmailHTML),
	}
}

// Values come from checkout metadata. Titles and subjects end up in mail
// headers, so they are kept on one line; HTML gets escaped values.
func replacer(vars Vars, clean func(string) string) *strings.Replacer {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		if clean != nil {
			v = clean(v)
		}
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...)
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func singleLine(s string) string {
	return lineBreaks.Replace(s)
}

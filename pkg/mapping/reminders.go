package mapping

import "github.com/jordanlanch/funnelsync/pkg/vault"

type reminderStep struct {
	ID  string
	Key string
}

// reminderSteps is the appointment lifecycle in send order
var reminderSteps = []reminderStep{
	{ID: "whenBooked", Key: "Appointment_Booked"},
	{ID: "reminder48h", Key: "Appointment_Reminder_48h"},
	{ID: "reminder24h", Key: "Appointment_Reminder_24h"},
	{ID: "reminder1h", Key: "Appointment_Reminder_1h"},
	{ID: "reminder10min", Key: "Appointment_Reminder_10min"},
	{ID: "atCallTime", Key: "Appointment_Call_Time"},
}

// MapAppointmentReminders maps each step's email and sms. Every key is only
// emitted when its own source text exists.
func MapAppointmentReminders(content map[string]any) Result {
	r := newResult()
	if len(content) == 0 {
		return r
	}

	for _, step := range reminderSteps {
		if parts, ok := readEmail(&r, vault.SectionAppointmentReminders, content, step.ID+".email"); ok {
			r.setIfPresent(step.Key+"_Email_Subject", parts.Subject)
			r.setIfPresent(step.Key+"_Email_Body", EmailBody(parts.Body))
			r.setIfPresent(step.Key+"_Email_Preheader", parts.Preheader)
		}
		r.setIfPresent(step.Key+"_SMS", readSMS(&r, vault.SectionAppointmentReminders, content, step.ID+".sms"))
	}
	return r
}

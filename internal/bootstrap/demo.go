package bootstrap

import (
	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
)

// seedDemoCatalog gives the memory backend something to book against:
// two locations, three specialties and a weekday schedule per doctor.
func seedDemoCatalog(repo *appointment.MemoryRepository) {
	centro := repo.AddLocation(appointment.Location{
		Name: "Unidade Centro", Address: "Rua da Bahia, 1148", City: "Belo Horizonte",
		Phone: "(31) 3333-4444", Active: true,
	})
	savassi := repo.AddLocation(appointment.Location{
		Name: "Unidade Savassi", Address: "Av. Getúlio Vargas, 1300", City: "Belo Horizonte",
		Phone: "(31) 3222-5555", Active: true,
	})

	clinica := repo.AddSpecialty(appointment.Specialty{Name: "Clínica Geral", Active: true})
	cardio := repo.AddSpecialty(appointment.Specialty{Name: "Cardiologia", Active: true})
	neuroped := repo.AddSpecialty(appointment.Specialty{Name: "Neuropediatria", Active: true, RequiresAttachment: true})

	type shift struct {
		location       appointment.Location
		weekdays       []int
		start, end     string
		durationMinute int
	}
	add := func(name, license string, spec appointment.Specialty, shifts ...shift) {
		d := repo.AddDoctor(appointment.Doctor{Name: name, License: license, SpecialtyID: spec.ID, Active: true})
		for _, s := range shifts {
			for _, wd := range s.weekdays {
				repo.AddAvailability(appointment.WeeklyAvailability{
					DoctorID: d.ID, LocationID: s.location.ID, Weekday: wd,
					StartTime:       appointment.MustTimeOfDay(s.start),
					EndTime:         appointment.MustTimeOfDay(s.end),
					DurationMinutes: s.durationMinute, Active: true,
				})
			}
		}
	}

	add("Dra. Ana Souza", "CRM-MG 10101", clinica,
		shift{centro, []int{0, 2, 4}, "08:00", "12:00", 30},
		shift{savassi, []int{1, 3}, "13:00", "17:00", 30})
	add("Dr. Carlos Mendes", "CRM-MG 20202", cardio,
		shift{centro, []int{1, 3}, "09:00", "12:00", 45})
	add("Dra. Beatriz Lima", "CRM-MG 30303", neuroped,
		shift{savassi, []int{2}, "14:00", "18:00", 60})
}

// Package device holds the per-device physical models of the household:
// the HVAC thermal model, the water heater tank model, the EV charger and
// fixed appliances. Every model is a pure function of its previous state,
// the step conditions and the dispatch control, so the driver can replay a
// step and obtain the same result.
package device

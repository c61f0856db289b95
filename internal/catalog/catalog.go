// Package catalog holds the static unit/module program definition. It is
// fixed at compile time and shared by both assessment trackers; the
// reporting surface always renders every module for every visible student.
package catalog

import (
	"strconv"

	"tutoria/server/internal/model"
)

type Unit struct {
	Key         string `json:"unit_key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Module struct {
	Key         string `json:"module_key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var units = []Unit{
	{Key: "unit_1", Name: "Unit 1", Description: "First unit of the program"},
	{Key: "unit_2", Name: "Unit 2", Description: "Second unit of the program"},
	{Key: "unit_3", Name: "Unit 3", Description: "Third unit of the program"},
	{Key: "unit_4", Name: "Unit 4", Description: "Fourth unit of the program"},
	{Key: "unit_5", Name: "Unit 5", Description: "Fifth unit of the program"},
}

// The diagnostic test follows the arithmetic curriculum; module numbering is
// global across units.
var diagnosticModules = map[string][]Module{
	"unit_1": {
		{Key: "module_1", Name: "Module 1", Description: "Addition of natural numbers"},
		{Key: "module_2", Name: "Module 2", Description: "Subtraction of natural numbers"},
		{Key: "module_3", Name: "Module 3", Description: "Multiplication of natural numbers"},
		{Key: "module_4", Name: "Module 4", Description: "Division of natural numbers"},
		{Key: "module_5", Name: "Module 5", Description: "Combined operations with natural numbers"},
	},
	"unit_2": {
		{Key: "module_1", Name: "Module 6", Description: "Addition of integers"},
		{Key: "module_2", Name: "Module 7", Description: "Subtraction of integers"},
		{Key: "module_3", Name: "Module 8", Description: "Multiplication and division of integers"},
		{Key: "module_4", Name: "Module 9", Description: "Combined operations with integers"},
		{Key: "module_5", Name: "Module 10", Description: "Integer word problems"},
	},
	"unit_3": {
		{Key: "module_1", Name: "Module 11", Description: "Key concepts of fractions"},
		{Key: "module_2", Name: "Module 12", Description: "Adding and subtracting fractions"},
		{Key: "module_3", Name: "Module 13", Description: "Multiplying fractions"},
		{Key: "module_4", Name: "Module 14", Description: "Dividing fractions"},
		{Key: "module_5", Name: "Module 15", Description: "Adding and subtracting decimals"},
		{Key: "module_6", Name: "Module 16", Description: "Multiplying decimals"},
		{Key: "module_7", Name: "Module 17", Description: "Dividing decimals"},
		{Key: "module_8", Name: "Module 18", Description: "Number sets"},
		{Key: "module_9", Name: "Module 19", Description: "Combined operations with rationals"},
		{Key: "module_10", Name: "Module 20", Description: "Rational number word problems"},
	},
	"unit_4": {
		{Key: "module_1", Name: "Module 21", Description: "Key concepts of percentages"},
		{Key: "module_2", Name: "Module 22", Description: "Direct percentage calculations"},
		{Key: "module_3", Name: "Module 23", Description: "Calculating any percentage"},
		{Key: "module_4", Name: "Module 24", Description: "Percentage word problems 1"},
		{Key: "module_5", Name: "Module 25", Description: "Percentage word problems 2"},
	},
	"unit_5": {
		{Key: "module_1", Name: "Module 26", Description: "Key concepts of roots"},
		{Key: "module_2", Name: "Module 27", Description: "Calculating roots"},
		{Key: "module_3", Name: "Module 28", Description: "Properties of roots"},
		{Key: "module_4", Name: "Module 29", Description: "Root word problems"},
		{Key: "module_5", Name: "Module 30", Description: "Key concepts of powers"},
		{Key: "module_6", Name: "Module 31", Description: "Calculating powers"},
		{Key: "module_7", Name: "Module 32", Description: "Properties of powers"},
		{Key: "module_8", Name: "Module 33", Description: "Power word problems"},
	},
}

// Exit tickets grade the same five modules in every unit.
var ticketModules = func() map[string][]Module {
	out := make(map[string][]Module, len(units))
	descriptions := []string{
		"Basic foundations",
		"Intermediate concepts",
		"Practical applications",
		"Advanced analysis",
		"Synthesis and evaluation",
	}
	for _, unit := range units {
		modules := make([]Module, len(descriptions))
		for i, description := range descriptions {
			modules[i] = Module{
				Key:         "module_" + strconv.Itoa(i+1),
				Name:        "Module " + strconv.Itoa(i+1),
				Description: description,
			}
		}
		out[unit.Key] = modules
	}
	return out
}()

// Units returns the ordered unit list (same for both assessment kinds).
func Units() []Unit { return units }

// ValidUnit reports whether key names a known unit.
func ValidUnit(key string) bool {
	_, ok := diagnosticModules[key]
	return ok
}

// Modules returns the ordered module list of a unit for the given kind, or
// nil for an unknown unit.
func Modules(kind model.AssessmentKind, unitKey string) []Module {
	switch kind {
	case model.KindDiagnostic:
		return diagnosticModules[unitKey]
	case model.KindTicket:
		return ticketModules[unitKey]
	default:
		return nil
	}
}

// ValidModule reports whether (unit, module) is part of the kind's program.
func ValidModule(kind model.AssessmentKind, unitKey, moduleKey string) bool {
	for _, module := range Modules(kind, unitKey) {
		if module.Key == moduleKey {
			return true
		}
	}
	return false
}

// TotalModules is the full cross-product size for the kind: sum of module
// counts over all units. Exports produce exactly students x TotalModules rows.
func TotalModules(kind model.AssessmentKind) int {
	total := 0
	for _, unit := range units {
		total += len(Modules(kind, unit.Key))
	}
	return total
}

package store

import (
	"strconv"
	"strings"
)

// buildJobSet/buildTrainingSet/buildInferenceSet/buildEvaluationSet turn an
// update struct's non-nil fields into "column = $n" clauses plus their
// positional arguments, so a partial update only ever touches the columns
// the caller actually set (design note §9: explicit update structs replace
// the source's dynamic **kwargs).

func buildJobSet(u JobUpdate) ([]string, []interface{}) {
	var set []string
	var args []interface{}
	if u.Status != nil {
		args = append(args, *u.Status)
		set = append(set, "status = $"+placeholder(len(args)))
	}
	if u.StartTime != nil {
		args = append(args, *u.StartTime)
		set = append(set, "start_time = $"+placeholder(len(args)))
	}
	if u.EndTime != nil {
		args = append(args, *u.EndTime)
		set = append(set, "end_time = $"+placeholder(len(args)))
	}
	if u.ErrorMessage != nil {
		args = append(args, *u.ErrorMessage)
		set = append(set, "error_message = $"+placeholder(len(args)))
	}
	return set, args
}

func buildTrainingSet(u TrainingUpdate) ([]string, []interface{}) {
	var set []string
	var args []interface{}
	if u.Status != nil {
		args = append(args, *u.Status)
		set = append(set, "status = $"+placeholder(len(args)))
	}
	if u.Progress != nil {
		args = append(args, *u.Progress)
		set = append(set, "progress = $"+placeholder(len(args)))
	}
	if u.StartTime != nil {
		args = append(args, *u.StartTime)
		set = append(set, "start_time = $"+placeholder(len(args)))
	}
	if u.EndTime != nil {
		args = append(args, *u.EndTime)
		set = append(set, "end_time = $"+placeholder(len(args)))
	}
	if u.ErrorMessage != nil {
		args = append(args, *u.ErrorMessage)
		set = append(set, "error_message = $"+placeholder(len(args)))
	}
	return set, args
}

func buildInferenceSet(u InferenceUpdate) ([]string, []interface{}) {
	var set []string
	var args []interface{}
	if u.Status != nil {
		args = append(args, *u.Status)
		set = append(set, "status = $"+placeholder(len(args)))
	}
	if u.Prediction != nil {
		args = append(args, *u.Prediction)
		set = append(set, "prediction = $"+placeholder(len(args)))
	}
	if u.StartTime != nil {
		args = append(args, *u.StartTime)
		set = append(set, "start_time = $"+placeholder(len(args)))
	}
	if u.EndTime != nil {
		args = append(args, *u.EndTime)
		set = append(set, "end_time = $"+placeholder(len(args)))
	}
	if u.ErrorMessage != nil {
		args = append(args, *u.ErrorMessage)
		set = append(set, "error_message = $"+placeholder(len(args)))
	}
	return set, args
}

func buildEvaluationSet(u EvaluationUpdate) ([]string, []interface{}) {
	var set []string
	var args []interface{}
	if u.Status != nil {
		args = append(args, *u.Status)
		set = append(set, "status = $"+placeholder(len(args)))
	}
	if u.StartTime != nil {
		args = append(args, *u.StartTime)
		set = append(set, "start_time = $"+placeholder(len(args)))
	}
	if u.EndTime != nil {
		args = append(args, *u.EndTime)
		set = append(set, "end_time = $"+placeholder(len(args)))
	}
	if u.ErrorMessage != nil {
		args = append(args, *u.ErrorMessage)
		set = append(set, "error_message = $"+placeholder(len(args)))
	}
	if u.Results != nil {
		args = append(args, *u.Results)
		set = append(set, "results = $"+placeholder(len(args)))
	}
	return set, args
}

func joinSet(set []string) string {
	return strings.Join(set, ", ")
}

func placeholder(n int) string {
	return strconv.Itoa(n)
}

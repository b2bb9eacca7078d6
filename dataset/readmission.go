package dataset

// LabelColumn is the outcome column of the preprocessed readmission data.
const LabelColumn = "readmitted"

// Readmission outcome classes.
const (
	NotReadmitted  = 0 // never readmitted
	ReadmittedLT30 = 1 // readmitted within 30 days
	ReadmittedGT30 = 2 // readmitted after 30 days
)

// ClassNames maps outcome classes to report labels.
var ClassNames = map[int]string{
	NotReadmitted:  "NO",
	ReadmittedLT30: "<30",
	ReadmittedGT30: ">30",
}

// ReadmissionFeatures is the ordered set of encoded clinical and demographic
// columns the classifiers are trained on.
var ReadmissionFeatures = []string{
	"race", "gender", "age",
	"admission_type_id", "discharge_disposition_id", "admission_source_id",
	"time_in_hospital", "num_lab_procedures",
	"num_procedures",
	"num_medications", "number_outpatient", "number_emergency",
	"number_inpatient", "diag_1", "number_diagnoses",
	"max_glu_serum", "A1Cresult", "metformin", "repaglinide", "nateglinide",
	"chlorpropamide", "glimepiride", "acetohexamide", "glipizide", "glyburide",
	"tolbutamide",
	"pioglitazone", "rosiglitazone", "acarbose", "miglitol",
	"troglitazone", "tolazamide", "insulin", "glyburide-metformin",
	"glipizide-metformin", "glimepiride-pioglitazone",
	"metformin-rosiglitazone", "metformin-pioglitazone", "change",
	"diabetesMed", "num_med_changed", "num_med_taken",
}

package generator

// --- Shared output contract ---
const jsonContract = `Return ONLY a single JSON object that matches this structure. Do not include any text before or after the JSON, and do not wrap it in backtick fences.

{
  "name": "Full Name",
  "headline": "Short professional headline",
  "contact": {"email": "", "phone": "", "location": "", "links": [""]},
  "summary": "Two to four sentence professional summary",
  "skills": ["skill"],
  "experience": [{"company": "", "title": "", "location": "", "startDate": "", "endDate": "", "bullets": [""]}],
  "education": [{"institution": "", "degree": "", "field": "", "startDate": "", "endDate": ""}],
  "projects": [{"name": "", "description": "", "link": "", "bullets": [""]}],
  "certifications": [""]
}

"name", "contact", "skills", "experience" and "education" are required. Use empty arrays rather than omitting them.`

// --- Tailor ---
const TailorSystemPrompt = "You are an expert resume writer. You rewrite a candidate's resume so that it targets a specific job description while staying strictly truthful to the candidate's real experience. You must output valid JSON."

const tailorUserPrompt = `Tailor the resume below to the job description.

Follow these rules:
1. Never invent employers, titles, dates, degrees or certifications that are not in the resume.
2. Reorder and rephrase bullets so the most relevant achievements for the job come first.
3. Mirror the terminology of the job description where the candidate genuinely has the skill.
4. Rewrite the summary and headline to target the role.
5. Keep bullets concise and start each with a strong verb.

` + jsonContract + `

JOB DESCRIPTION:
%s

RESUME:
%s`

// --- Parse ---
const ParserSystemPrompt = "You are a precise resume parser. You convert resume text into structured JSON without rewriting, summarising or embellishing any content. You must output valid JSON."

const parseUserPrompt = `Convert the resume text below into structured JSON.

Copy wording verbatim wherever possible. If a field is not present in the text, leave it as an empty string or empty array.

` + jsonContract + `

RESUME TEXT:
%s`

// --- Edit ---
const EditorSystemPrompt = "You are a careful resume editor. You apply the user's instruction to a structured resume and change nothing else. You must output valid JSON."

const editUserPrompt = `Apply the instruction to the resume JSON below and return the complete updated resume.

Only change what the instruction asks for. Keep every other field exactly as it is.

` + jsonContract + `

INSTRUCTION:
%s

RESUME JSON:
%s`

// formatReminder is appended when the previous answer could not be used.
const formatReminder = `

IMPORTANT: Your previous answer was not a valid JSON object of the required structure. Respond again with ONLY the JSON object, nothing else.`

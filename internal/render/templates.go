package render

// htmlTemplate is the self-contained inline digest body. All styles are
// inline so the email renders without external CSS.
const htmlTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{ subject | escape }}</title></head>
<body style="margin:0;padding:0;background:#f5f5f7;font-family:Arial,Helvetica,sans-serif;color:#1d1d1f;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center" style="padding:24px 12px;">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;overflow:hidden;">
<tr><td style="background:#1d1d1f;color:#ffffff;padding:24px 32px;">
  <h1 style="margin:0;font-size:22px;">Your Weekly Digest</h1>
  <p style="margin:8px 0 0;font-size:14px;color:#d2d2d7;">Hi {{ user.name | default: "there" }}, here is what you captured this week.</p>
</td></tr>
{% if ai_summary != "" %}
<tr><td style="padding:24px 32px 0;">
  <div style="background:#f0f7ff;border-left:4px solid #0071e3;padding:12px 16px;border-radius:4px;font-size:14px;white-space:pre-line;">{{ ai_summary | escape }}</div>
</td></tr>
{% endif %}
{% if metadata.brief_mode %}
<tr><td style="padding:24px 32px;">
  <p style="font-size:15px;">A quiet week. Nothing new landed in your library, but the habit is one capture away.</p>
</td></tr>
{% endif %}
{% if sections.highlights and sections.highlights != empty %}
<tr><td style="padding:24px 32px 0;">
  <h2 style="margin:0 0 12px;font-size:17px;">Highlights</h2>
  {% for item in sections.highlights %}
  <div style="padding:12px 0;border-bottom:1px solid #e5e5ea;">
    <p style="margin:0;font-size:15px;font-weight:bold;">
      {% if item.url %}<a href="{{ item.url }}" style="color:#0071e3;text-decoration:none;">{{ item.title | escape }}</a>{% else %}{{ item.title | escape }}{% endif %}
    </p>
    {% if item.subtitle %}<p style="margin:4px 0 0;font-size:13px;color:#6e6e73;">{{ item.subtitle | truncate: 160 | escape }}</p>{% endif %}
    {% if item.tags and item.tags != empty %}<p style="margin:6px 0 0;font-size:12px;color:#86868b;">{% for tag in item.tags %}#{{ tag | escape }} {% endfor %}</p>{% endif %}
  </div>
  {% endfor %}
</td></tr>
{% endif %}
{% if sections.more_content and sections.more_content != empty %}
<tr><td style="padding:24px 32px 0;">
  <h2 style="margin:0 0 12px;font-size:17px;">More from your week</h2>
  <ul style="margin:0;padding-left:18px;font-size:14px;">
  {% for item in sections.more_content %}
    <li style="margin:4px 0;">{% if item.url %}<a href="{{ item.url }}" style="color:#0071e3;">{{ item.title | escape }}</a>{% else %}{{ item.title | escape }}{% endif %}</li>
  {% endfor %}
  </ul>
</td></tr>
{% endif %}
{% if sections.stacks and sections.stacks != empty %}
<tr><td style="padding:24px 32px 0;">
  <h2 style="margin:0 0 12px;font-size:17px;">Your stacks</h2>
  {% for stack in sections.stacks %}
  <p style="margin:4px 0;font-size:14px;"><strong>{{ stack.name | escape }}</strong> · {{ stack.item_count }} items</p>
  {% endfor %}
</td></tr>
{% endif %}
{% if sections.suggestions and sections.suggestions != empty %}
<tr><td style="padding:24px 32px 0;">
  <h2 style="margin:0 0 12px;font-size:17px;">Suggestions</h2>
  {% for s in sections.suggestions %}
  <div style="padding:8px 0;">
    <p style="margin:0;font-size:14px;font-weight:bold;">{{ s.title | escape }}</p>
    <p style="margin:2px 0 0;font-size:13px;color:#6e6e73;">{{ s.description | escape }}</p>
    {% if s.action_url %}<p style="margin:4px 0 0;font-size:13px;"><a href="{{ s.action_url }}" style="color:#0071e3;">Take a look</a></p>{% endif %}
  </div>
  {% endfor %}
</td></tr>
{% endif %}
<tr><td style="padding:24px 32px;">
  <a href="{{ login_url }}" style="display:inline-block;background:#0071e3;color:#ffffff;padding:10px 20px;border-radius:6px;font-size:14px;text-decoration:none;">Open your library</a>
</td></tr>
<tr><td style="padding:16px 32px 24px;border-top:1px solid #e5e5ea;">
  <p style="margin:0;font-size:12px;color:#86868b;">
    Generated {{ metadata.generated_at }} ·
    <a href="{{ unsubscribe_url }}" style="color:#86868b;">Unsubscribe</a>
  </p>
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>`

// textTemplate is the plain-text alternative body.
const textTemplate = `YOUR WEEKLY DIGEST

Hi {{ user.name | default: "there" }},
{% if ai_summary != "" %}
{{ ai_summary }}
{% endif %}{% if sections.highlights and sections.highlights != empty %}
HIGHLIGHTS
{% for item in sections.highlights %}* {{ item.title }}{% if item.url %} ({{ item.url }}){% endif %}
{% endfor %}{% endif %}{% if sections.more_content and sections.more_content != empty %}
MORE FROM YOUR WEEK
{% for item in sections.more_content %}* {{ item.title }}{% if item.url %} ({{ item.url }}){% endif %}
{% endfor %}{% endif %}{% if sections.stacks and sections.stacks != empty %}
YOUR STACKS
{% for stack in sections.stacks %}* {{ stack.name }} ({{ stack.item_count }} items)
{% endfor %}{% endif %}{% if sections.suggestions and sections.suggestions != empty %}
SUGGESTIONS
{% for s in sections.suggestions %}* {{ s.title }}: {{ s.description }}
{% endfor %}{% endif %}
Open your library: {{ login_url }}
Unsubscribe: {{ unsubscribe_url }}`
